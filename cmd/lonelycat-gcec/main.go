// Command lonelycat-gcec is the operator-facing CLI for the Governed
// Change Execution Core: every boundary operation the Planner,
// WriteGate, Executor and Similarity subsystems expose, as one
// subcommand tree.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
