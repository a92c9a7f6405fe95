package cmd

import (
	"encoding/json"
	"fmt"

	"ams/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newListCmd creates the list command.
func newListCmd(provider *AppProvider) *cobra.Command {
	var (
		status string
		dep    int
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues with filtering",
		Long: `List issues, newest last.

By default lists issues that are not done. Use flags to filter.

Examples:
  ams list                      # everything still to do
  ams list --all                # include done issues
  ams list --status in_progress
  ams list --dep 3              # issues that depend on #3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			filter := &issuestorage.ListFilter{}
			if status != "" {
				s, err := issuestorage.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			if cmd.Flags().Changed("dep") {
				filter.DependsOn = &dep
			}

			issues, err := app.Store.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("listing issues: %w", err)
			}

			// Default view hides done issues unless asked for explicitly.
			if !all && status == "" {
				open := issues[:0]
				for _, issue := range issues {
					if issue.Status != issuestorage.StatusDone {
						open = append(open, issue)
					}
				}
				issues = open
			}

			if app.JSON {
				if issues == nil {
					issues = []*issuestorage.Issue{}
				}
				return json.NewEncoder(app.Out).Encode(issues)
			}

			if len(issues) == 0 {
				fmt.Fprintln(app.Out, "No issues found.")
				return nil
			}

			for _, issue := range issues {
				line := fmt.Sprintf("  %s  [%s]  %s",
					app.Style.ID(fmt.Sprintf("#%d", issue.ID)),
					app.Style.Status(issue.Status),
					issue.Title)
				if len(issue.Dependencies) > 0 {
					line += "  " + app.Style.Muted("deps: "+joinIDs(issue.Dependencies))
				}
				fmt.Fprintln(app.Out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (open, in_progress, blocked, done)")
	cmd.Flags().IntVar(&dep, "dep", 0, "Only issues depending on this issue ID")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include done issues")

	return cmd
}
