package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangeSet_AffectedPaths_DeduplicatesPreservingFirstSeenOrder(t *testing.T) {
	cs := &ChangeSet{Changes: []FileChange{
		{Op: OpCreate, Path: "app/a.go"},
		{Op: OpUpdate, Path: "app/b.go"},
		{Op: OpUpdate, Path: "app/a.go"},
		{Op: OpDelete, Path: "app/c.go"},
		{Op: OpUpdate, Path: "app/b.go"},
	}}

	require.Equal(t, []string{"app/a.go", "app/b.go", "app/c.go"}, cs.AffectedPaths())
}

func TestChangeSet_AffectedPaths_EmptyChangesYieldsEmptySlice(t *testing.T) {
	cs := &ChangeSet{}
	require.Empty(t, cs.AffectedPaths())
}

func TestRiskLevel_Rank_OrdersLowToCritical(t *testing.T) {
	require.Less(t, RiskLow.Rank(), RiskMedium.Rank())
	require.Less(t, RiskMedium.Rank(), RiskHigh.Rank())
	require.Less(t, RiskHigh.Rank(), RiskCritical.Rank())
}

func TestRiskLevel_Rank_UnknownLevelIsNegativeOne(t *testing.T) {
	require.Equal(t, -1, RiskLevel("nonsense").Rank())
}

func TestRiskLevel_Max_ReturnsHigherRankedLevel(t *testing.T) {
	require.Equal(t, RiskHigh, RiskLow.Max(RiskHigh))
	require.Equal(t, RiskHigh, RiskHigh.Max(RiskLow))
	require.Equal(t, RiskCritical, RiskHigh.Max(RiskCritical))
}

func TestRiskLevel_Max_EqualLevelsReturnsSameLevel(t *testing.T) {
	require.Equal(t, RiskMedium, RiskMedium.Max(RiskMedium))
}

func TestRiskLevel_Max_UnknownOtherNeverWins(t *testing.T) {
	require.Equal(t, RiskLow, RiskLow.Max(RiskLevel("nonsense")))
}
