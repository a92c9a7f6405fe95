package e2etests

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	amsCmd := os.Getenv("AMS_CMD")
	if amsCmd == "" {
		t.Skip("AMS_CMD environment variable not set; skipping e2e tests")
	}
	return &Runner{AmsCmd: amsCmd}
}

func sandbox(t *testing.T, r *Runner) *Sandbox {
	t.Helper()
	s, err := r.SetupSandbox()
	if err != nil {
		t.Fatalf("failed to setup sandbox: %v", err)
	}
	t.Cleanup(func() { r.TeardownSandbox(s) })
	return s
}

func TestWorkflow(t *testing.T) {
	r := testRunner(t)
	s := sandbox(t, r)

	if _, err := r.MustRun(s, "init"); err != nil {
		t.Fatal(err)
	}

	if _, err := r.MustRun(s, "create", "Set up database schema"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.MustRun(s, "create", "Write API endpoints", "--dep", "1"); err != nil {
		t.Fatal(err)
	}

	// Only the unblocked issue is ready.
	result, err := r.MustRun(s, "ready")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "Set up database schema") ||
		strings.Contains(result.Stdout, "Write API endpoints") {
		t.Errorf("unexpected ready output:\n%s", result.Stdout)
	}

	if _, err := r.MustRun(s, "update", "1", "--status", "in_progress"); err != nil {
		t.Fatal(err)
	}

	result, err = r.MustRun(s, "done", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "Now ready: #2") {
		t.Errorf("dependent not reported ready:\n%s", result.Stdout)
	}

	// Done issues disappear from the default list.
	result, err = r.MustRun(s, "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result.Stdout, "Set up database schema") {
		t.Errorf("done issue in default list:\n%s", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "Write API endpoints") {
		t.Errorf("open issue missing from list:\n%s", result.Stdout)
	}

	result, err = r.MustRun(s, "show", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "depends:  #1") {
		t.Errorf("show missing dependency line:\n%s", result.Stdout)
	}
}

func TestJSONOutput(t *testing.T) {
	r := testRunner(t)
	s := sandbox(t, r)

	if _, err := r.MustRun(s, "init"); err != nil {
		t.Fatal(err)
	}

	result, err := r.MustRun(s, "create", "Machine readable", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var created map[string]int
	if err := json.Unmarshal([]byte(result.Stdout), &created); err != nil {
		t.Fatalf("create --json produced invalid JSON %q: %v", result.Stdout, err)
	}
	if created["id"] != 1 {
		t.Errorf("id = %d, want 1", created["id"])
	}

	result, err = r.MustRun(s, "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var issues []map[string]interface{}
	if err := json.Unmarshal([]byte(result.Stdout), &issues); err != nil {
		t.Fatalf("list --json produced invalid JSON %q: %v", result.Stdout, err)
	}
	if len(issues) != 1 || issues[0]["title"] != "Machine readable" {
		t.Errorf("unexpected issues: %v", issues)
	}
}

func TestExitCodes(t *testing.T) {
	r := testRunner(t)
	s := sandbox(t, r)

	if _, err := r.MustRun(s, "init"); err != nil {
		t.Fatal(err)
	}

	// Unknown issue: exit code 2.
	result, err := r.Run(s, "show", "42")
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 2 {
		t.Errorf("show unknown id: exit %d, want 2\nstderr: %s", result.ExitCode, result.Stderr)
	}

	// Validation problem: exit code 1.
	result, err = r.Run(s, "update", "abc", "--status", "done")
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 1 {
		t.Errorf("invalid id: exit %d, want 1\nstderr: %s", result.ExitCode, result.Stderr)
	}
}

func TestMissingStore(t *testing.T) {
	r := testRunner(t)
	s := sandbox(t, r)

	// No init: commands that need the store fail with a pointer to init.
	result, err := r.Run(s, "list")
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode == 0 {
		t.Error("list without a store should fail")
	}
	if !strings.Contains(result.Stderr, "ams init") {
		t.Errorf("error should mention 'ams init':\n%s", result.Stderr)
	}
}

func TestPersistenceAcrossInvocations(t *testing.T) {
	r := testRunner(t)
	s := sandbox(t, r)

	if _, err := r.MustRun(s, "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.MustRun(s, "create", "Survives restart"); err != nil {
		t.Fatal(err)
	}

	// Every invocation is a separate process; state must come from disk.
	result, err := r.MustRun(s, "show", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "Survives restart") {
		t.Errorf("issue did not persist:\n%s", result.Stdout)
	}
}
