package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newDoneCmd creates the done command.
func newDoneCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <issue-id> [issue-id...]",
		Short: "Mark one or more issues as done",
		Long: `Mark issues as done. Done is a terminal status, not deletion: the
issue stays in the log and its history is preserved.

Closing an issue whose own dependencies are not all done is allowed but
flagged with a warning. Dependents that become ready are reported.

Examples:
  ams done 3
  ams done 3 4 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var done []int
			var newlyReady []int
			var errs []error

			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					errs = append(errs, err)
					continue
				}

				issue, report, err := app.Store.MarkDone(ctx, id)
				if err != nil {
					errs = append(errs, fmt.Errorf("closing #%d: %w", id, err))
					continue
				}
				done = append(done, issue.ID)
				app.PrintWarnings(report.Warnings)
				newlyReady = append(newlyReady, report.NewlyReady...)
			}

			if len(done) > 0 {
				app.AutoCommit(ctx, fmt.Sprintf("ams: mark done %s", joinIDs(done)))
			}

			if app.JSON {
				result := map[string]interface{}{
					"done":        done,
					"newly_ready": newlyReady,
				}
				if len(errs) > 0 {
					strs := make([]string, len(errs))
					for i, e := range errs {
						strs[i] = e.Error()
					}
					result["errors"] = strs
				}
				if err := json.NewEncoder(app.Out).Encode(result); err != nil {
					return err
				}
				if len(errs) > 0 {
					return errs[0]
				}
				return nil
			}

			for _, id := range done {
				fmt.Fprintf(app.Out, "%s %s\n", app.Style.Pass("Done"), app.Style.ID(fmt.Sprintf("#%d", id)))
			}
			if len(newlyReady) > 0 {
				fmt.Fprintf(app.Out, "Now ready: %s\n", joinIDs(newlyReady))
			}

			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(app.Err, "Error: %v\n", e)
				}
				return errs[0]
			}
			return nil
		},
	}

	return cmd
}
