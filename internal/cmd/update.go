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

// newUpdateCmd creates the update command.
func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		title            string
		description      string
		status           string
		deps             []int
		addDeps          []int
		removeDeps       []int
		allowMissingDeps bool
	)

	cmd := &cobra.Command{
		Use:   "update <issue-id>",
		Short: "Update fields of an existing issue",
		Long: `Update fields of an existing issue. Only the flags you pass change;
every update appends a superseding record to the log.

Examples:
  ams update 3 --title "New title"
  ams update 3 --status blocked
  ams update 3 --add-dep 7 --remove-dep 2
  ams update 3 --dep 4 --dep 5        # replace the whole dependency set
  ams update 3 --description -        # read from stdin`,
		Args: cobra.ExactArgs(1),
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

			patch := issuestorage.Patch{}

			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}

			if cmd.Flags().Changed("description") {
				desc := description
				if description == "-" {
					data, err := io.ReadAll(bufio.NewReader(os.Stdin))
					if err != nil {
						return fmt.Errorf("reading description from stdin: %w", err)
					}
					desc = strings.TrimSpace(string(data))
				}
				patch.Description = &desc
			}

			if cmd.Flags().Changed("status") {
				s, err := issuestorage.ParseStatus(status)
				if err != nil {
					return err
				}
				patch.Status = &s
			}

			if cmd.Flags().Changed("dep") && (len(addDeps) > 0 || len(removeDeps) > 0) {
				return &issuestorage.ValidationError{Msg: "--dep replaces the dependency set and cannot be combined with --add-dep/--remove-dep"}
			}

			if cmd.Flags().Changed("dep") {
				patch.Dependencies = &deps
			} else if len(addDeps) > 0 || len(removeDeps) > 0 {
				current, err := app.Store.Get(ctx, id)
				if err != nil {
					return err
				}
				next := append([]int(nil), current.Dependencies...)
				next = append(next, addDeps...)
				if len(removeDeps) > 0 {
					drop := make(map[int]bool, len(removeDeps))
					for _, d := range removeDeps {
						drop[d] = true
					}
					kept := next[:0]
					for _, d := range next {
						if !drop[d] {
							kept = append(kept, d)
						}
					}
					next = kept
				}
				patch.Dependencies = &next
			}

			if patch.Empty() {
				return &issuestorage.ValidationError{Msg: "nothing to update: pass at least one field flag"}
			}

			issue, warnings, err := app.Store.Update(ctx, id, patch,
				issuestorage.WriteOpts{AllowMissingDeps: allowMissingDeps})
			if err != nil {
				return err
			}
			app.PrintWarnings(warnings)
			app.AutoCommit(ctx, fmt.Sprintf("ams: update issue #%d", id))

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(issue)
			}

			fmt.Fprintf(app.Out, "Updated %s [%s] %s\n",
				app.Style.ID(fmt.Sprintf("#%d", issue.ID)),
				app.Style.Status(issue.Status),
				issue.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description (use - for stdin)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status (open, in_progress, blocked, done)")
	cmd.Flags().IntSliceVar(&deps, "dep", nil, "Replace the dependency set (can repeat)")
	cmd.Flags().IntSliceVar(&addDeps, "add-dep", nil, "Add a dependency (can repeat)")
	cmd.Flags().IntSliceVar(&removeDeps, "remove-dep", nil, "Remove a dependency (can repeat)")
	cmd.Flags().BoolVar(&allowMissingDeps, "allow-missing-deps", false, "Accept dependencies on unknown issue IDs with a warning")

	return cmd
}
