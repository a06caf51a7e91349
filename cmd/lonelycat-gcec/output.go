package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
)

// printJSON marshals v indented to stdout, the --output json path for
// every command.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a tabwriter already wired to stdout, flushed by the
// caller when done, for the --output table path.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
}

func jsonOutput() bool {
	return flagOutput == "json"
}

func printErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}
