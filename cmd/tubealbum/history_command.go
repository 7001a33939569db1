package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or the items of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cc.loadSettings()
			if err != nil {
				return err
			}
			store, err := cc.openHistory(settings)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("history is disabled (history_path is empty)")
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet.")
					return nil
				}
				fmt.Fprintln(out, renderRuns(runs))
				return nil
			}

			run, err := store.FindRun(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s\n%s\n", run.ID, run.PlaylistURL)
			if run.FatalError != "" {
				fmt.Fprintf(out, "Fatal: %s\n", run.FatalError)
				return nil
			}
			fmt.Fprintf(out, "%s - %s -> %s\n", run.Artist, run.Album, run.OutputDir)
			items, err := store.Items(ctx, run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRunItems(items))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}
