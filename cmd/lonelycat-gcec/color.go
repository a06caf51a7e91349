package main

import (
	"github.com/fatih/color"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

var (
	colorAllow   = color.New(color.FgGreen, color.Bold)
	colorDeny    = color.New(color.FgRed, color.Bold)
	colorNeed    = color.New(color.FgYellow, color.Bold)
	colorOK      = color.New(color.FgGreen)
	colorFailed  = color.New(color.FgRed)
	colorNeutral = color.New(color.FgCyan)
)

func colorVerdict(v contracts.Verdict) string {
	switch v {
	case contracts.VerdictAllow:
		return colorAllow.Sprint(v)
	case contracts.VerdictDeny:
		return colorDeny.Sprint(v)
	case contracts.VerdictNeedApproval:
		return colorNeed.Sprint(v)
	default:
		return string(v)
	}
}

func colorStatus(s contracts.Status) string {
	switch s {
	case contracts.StatusCompleted:
		return colorOK.Sprint(s)
	case contracts.StatusFailed, contracts.StatusRolledBack:
		return colorFailed.Sprint(s)
	case contracts.StatusRunning, contracts.StatusPending:
		return colorNeutral.Sprint(s)
	default:
		return string(s)
	}
}
