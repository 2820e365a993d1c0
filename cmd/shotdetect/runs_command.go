package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shotdetect/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded detection runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					if runs == nil {
						runs = []*store.Run{}
					}
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				return writeRunTable(cmd, runs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")

	cmd.AddCommand(newRunsDeleteCommand(ctx))
	return cmd
}

func newRunsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its shot list from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := st.DeleteRun(cmd.Context(), run.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}

func newShotsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "shots <run-id>",
		Short: "Show the shot list of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				shots, err := st.ListShots(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, shots)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s  %s  %s\n", run.ID, statusLabel(run.Status), run.InputPath)
				if run.Error != "" {
					fmt.Fprintf(out, "  error: %s\n", run.Error)
				}
				if len(shots) == 0 {
					fmt.Fprintln(out, "  no shots recorded")
					return nil
				}
				return writeShotTable(out, shots)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print shots as JSON")
	return cmd
}

func writeRunTable(cmd *cobra.Command, runs []*store.Run) error {
	columns := []column{
		{title: "ID"},
		{title: "Status"},
		{title: "Shots", numeric: true},
		{title: "Frames", numeric: true},
		{title: "Warnings", numeric: true},
		{title: "Started"},
		{title: "Input"},
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		warnings := run.ImageFailures + run.SinkFailures + run.AudioErrors
		rows = append(rows, []string{
			shortID(run.ID),
			statusLabel(run.Status),
			formatCount(run.ShotCount),
			formatCount(run.Frames),
			formatCount(warnings),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strings.TrimSpace(run.InputPath),
		})
	}
	return writeTable(cmd.OutOrStdout(), columns, rows)
}
