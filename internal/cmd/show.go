package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newShowCmd creates the show command.
func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <issue-id>",
		Short: "Show full details of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			issue, err := app.Store.Get(ctx, id)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(issue)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s %s\n", app.Style.ID(fmt.Sprintf("#%d", issue.ID)), app.Style.Title(issue.Title))
			fmt.Fprintf(&b, "status:   %s\n", app.Style.Status(issue.Status))
			fmt.Fprintf(&b, "created:  %s\n", issue.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(&b, "updated:  %s", issue.UpdatedAt.Local().Format(time.RFC3339))
			if len(issue.Dependencies) > 0 {
				fmt.Fprintf(&b, "\ndepends:  %s", joinIDs(issue.Dependencies))
			}
			if issue.Description != "" {
				fmt.Fprintf(&b, "\n\n%s", issue.Description)
			}

			fmt.Fprintln(app.Out, app.Style.Panel(b.String()))
			return nil
		},
	}

	return cmd
}
