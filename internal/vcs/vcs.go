// Package vcs implements the optional version-control auto-commit of the
// .ams data files. Everything here is best-effort: the store is already
// durable before any commit happens, and a failure to commit never fails
// the operation that triggered it.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// InRepo reports whether dir is inside a git work tree.
func InRepo(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// Commit stages the given paths and commits them with message. Returns an
// error when git is unavailable or the commit fails for a reason other than
// "nothing to commit".
func Commit(ctx context.Context, dir string, paths []string, message string) error {
	if !InRepo(ctx, dir) {
		return nil
	}

	addArgs := append([]string{"add", "--"}, paths...)
	add := exec.CommandContext(ctx, "git", addArgs...)
	add.Dir = dir
	if out, err := add.CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %v: %s", err, strings.TrimSpace(string(out)))
	}

	commitArgs := append([]string{"commit", "-m", message, "--"}, paths...)
	commit := exec.CommandContext(ctx, "git", commitArgs...)
	commit.Dir = dir
	out, err := commit.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "nothing to commit") ||
			strings.Contains(string(out), "nothing added to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
