package cmd

import (
	"encoding/json"
	"fmt"

	"ams/internal/issuestorage"

	"github.com/spf13/cobra"
)

// newReadyCmd creates the ready command.
func newReadyCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List issues that are ready to work on",
		Long: `List issues that are ready to work on.

An issue is ready if its status is not done and every issue it depends on
is done. Issues that reference unknown dependency IDs are excluded and
flagged; issues inside a dependency cycle are never ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			ready, err := app.Store.Ready(ctx)
			if err != nil {
				return fmt.Errorf("computing ready work: %w", err)
			}

			integrity, err := app.Store.Integrity(ctx)
			if err != nil {
				return err
			}
			app.PrintWarnings(integrity)

			if app.JSON {
				if ready == nil {
					ready = []*issuestorage.Issue{}
				}
				return json.NewEncoder(app.Out).Encode(ready)
			}

			if len(ready) == 0 {
				fmt.Fprintln(app.Out, "No ready issues found.")
				return nil
			}

			fmt.Fprintf(app.Out, "Ready issues (%d):\n\n", len(ready))
			for _, issue := range ready {
				fmt.Fprintf(app.Out, "  %s  [%s]  %s\n",
					app.Style.ID(fmt.Sprintf("#%d", issue.ID)),
					app.Style.Status(issue.Status),
					issue.Title)
			}
			return nil
		},
	}

	return cmd
}
