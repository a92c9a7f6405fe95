package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ams/internal/config"
	"ams/internal/issueservice"

	"github.com/spf13/cobra"
)

// newInitCmd creates the init command.
func newInitCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an .ams directory here",
		Long: `Initialize the .ams directory in the current directory (or at --path).

Creates .ams/issues.jsonl (the append-only issue log), .ams/meta.json
(the identifier counter), and .ams/config.yaml. Safe to run twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir := provider.AmsPath
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("cannot get current directory: %w", err)
				}
				dir = filepath.Join(cwd, ".ams")
			}

			if err := issueservice.Init(ctx, dir); err != nil {
				return fmt.Errorf("initializing %s: %w", dir, err)
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.WriteDefault(cfgPath); err != nil {
					return err
				}
			}

			if provider.JSONOutput {
				return json.NewEncoder(provider.Out).Encode(map[string]string{"dir": dir})
			}
			fmt.Fprintf(provider.Out, "Initialized ams store in %s\n", dir)
			return nil
		},
	}

	return cmd
}
