// ams is a local issue tracker that gives an AI coding agent persistent
// memory of work across sessions, stored as an append-only JSONL log.
package main

import (
	"fmt"
	"os"

	"ams/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
