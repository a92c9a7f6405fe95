package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"ams/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newCreateCmd creates the create command.
func newCreateCmd(provider *AppProvider) *cobra.Command {
	var (
		description      string
		deps             []int
		allowMissingDeps bool
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new issue",
		Long: `Create a new issue with the specified title.

Examples:
  ams create "Fix login bug"
  ams create "Add caching" -d "use an LRU"
  ams create "Write tests" --dep 3 --dep 7
  ams create "Task" --description -   # read description from stdin

Dependencies must reference existing issues; pass --allow-missing-deps to
record a forward reference anyway (flagged as an integrity warning).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			title := args[0]

			desc := description
			if description == "-" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("reading description from stdin: %w", err)
				}
				desc = strings.TrimSpace(string(data))
			}

			issue := &issuestorage.Issue{
				Title:        title,
				Description:  desc,
				Dependencies: deps,
			}

			warnings, err := app.Store.Create(ctx, issue,
				issuestorage.WriteOpts{AllowMissingDeps: allowMissingDeps})
			if err != nil {
				return fmt.Errorf("creating issue: %w", err)
			}
			app.PrintWarnings(warnings)
			app.AutoCommit(ctx, fmt.Sprintf("ams: create issue #%d", issue.ID))

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]int{"id": issue.ID})
			}

			fmt.Fprintf(app.Out, "Created %s %s\n",
				app.Style.ID(fmt.Sprintf("#%d", issue.ID)), app.Style.Title(issue.Title))
			if len(issue.Dependencies) > 0 {
				fmt.Fprintf(app.Out, "  depends on %s\n", app.Style.Muted(joinIDs(issue.Dependencies)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Full description (use - for stdin)")
	cmd.Flags().IntSliceVar(&deps, "dep", nil, "Issue ID this depends on (can repeat)")
	cmd.Flags().BoolVar(&allowMissingDeps, "allow-missing-deps", false, "Accept dependencies on unknown issue IDs with a warning")

	return cmd
}

// joinIDs renders a dependency list as "#1, #2, #3".
func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
