package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ams/internal/config"
	"ams/internal/issueservice"
	"ams/internal/issuestorage"
	"ams/internal/issuestorage/appendlog"
	"ams/internal/ui"

	"github.com/spf13/cobra"
)

// Exit codes for the distinct store error kinds.
const (
	ExitOK          = 0
	ExitError       = 1 // validation and everything unclassified
	ExitNotFound    = 2
	ExitCorruptLog  = 3
	ExitLockTimeout = 4
)

// ExitCode maps a command error to its process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var corrupt *issuestorage.CorruptLogError
	switch {
	case errors.Is(err, issuestorage.ErrLockTimeout):
		return ExitLockTimeout
	case errors.As(err, &corrupt):
		return ExitCorruptLog
	case errors.Is(err, issuestorage.ErrNotFound):
		return ExitNotFound
	default:
		return ExitError
	}
}

// AppProvider lazily initializes the App on first use, so commands like
// init and help work without an existing store.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	AmsPath    string
	JSONOutput bool
	Out        io.Writer
	Err        io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test store.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	dir, err := FindAmsDir(p.AmsPath)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfgPath := filepath.Join(dir, "config.yaml")
	if loaded, err := config.Load(cfgPath); err == nil {
		cfg = loaded
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	store, err := issueservice.Open(context.Background(), dir,
		appendlog.WithLockTimeout(cfg.LockTimeoutDuration()))
	if err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	style := ui.NewStyler(cfg.Color, stdoutIsTerminal())
	if p.JSONOutput {
		style = ui.Styler{Enabled: false}
	}

	return &App{
		Store:  store,
		Config: cfg,
		Dir:    dir,
		Out:    out,
		Err:    errOut,
		JSON:   p.JSONOutput,
		Style:  style,
	}, nil
}

// FindAmsDir locates the .ams directory. If path is provided it is used
// directly; otherwise the search walks up from the current directory.
func FindAmsDir(path string) (string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("cannot access ams directory %s: %w", path, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("ams path is not a directory: %s", path)
		}
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}

	dir := cwd
	for {
		amsDir := filepath.Join(dir, ".ams")
		info, err := os.Stat(amsDir)
		if err == nil && info.IsDir() {
			return amsDir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .ams directory found (searched from %s to /); run 'ams init' first", cwd)
		}
		dir = parent
	}
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}

	rootCmd := newRootCmd(provider)
	return rootCmd.Execute()
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ams",
		Short: "Persistent issue memory for AI coding agents",
		Long: `ams is a local issue tracker that gives a coding agent structured
memory of work across sessions. Issues live in .ams/issues.jsonl, an
append-only JSONL log that is easy to diff and check into version control.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider.AmsPath, "path", "", "Path to the .ams directory (default: search up from cwd)")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newCreateCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newDoneCmd(provider))
	rootCmd.AddCommand(newReadyCmd(provider))

	return rootCmd
}
