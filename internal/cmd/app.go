// Package cmd implements the ams command-line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"ams/internal/config"
	"ams/internal/issuestorage"
	"ams/internal/ui"
	"ams/internal/vcs"
)

// App holds application state shared across commands.
type App struct {
	Store  issuestorage.IssueStore
	Config config.Config
	Dir    string // path to the .ams directory
	Out    io.Writer
	Err    io.Writer
	JSON   bool // output in JSON format
	Style  ui.Styler
}

// PrintWarnings writes integrity warnings to stderr. Warnings never change
// the exit code.
func (a *App) PrintWarnings(warnings []issuestorage.IntegrityWarning) {
	for _, w := range warnings {
		fmt.Fprintf(a.Err, "%s %s\n", a.Style.Warn("warning:"), w)
	}
}

// AutoCommit snapshots the .ams data files into version control after a
// successful mutating command. Best effort: the store is already durable,
// so a failure here is reported as a warning and otherwise ignored.
func (a *App) AutoCommit(ctx context.Context, message string) {
	if !a.Config.AutoCommit {
		return
	}
	parent := filepath.Dir(a.Dir)
	paths := []string{filepath.Base(a.Dir)}
	if err := vcs.Commit(ctx, parent, paths, message); err != nil {
		fmt.Fprintf(a.Err, "%s auto-commit failed: %v\n", a.Style.Warn("warning:"), err)
	}
}

// parseID converts a command-line argument to an issue ID.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, &issuestorage.ValidationError{Msg: fmt.Sprintf("invalid issue ID %q", arg)}
	}
	return id, nil
}

// stdoutIsTerminal reports whether the process stdout is a TTY.
func stdoutIsTerminal() bool {
	return ui.IsTerminal(os.Stdout)
}
