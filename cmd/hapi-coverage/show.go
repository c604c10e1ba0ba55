package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/hapi-coverage/pkg/report"
	"github.com/Sternrassler/hapi-coverage/pkg/store"
	"github.com/spf13/cobra"
)

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print a stored report (latest run when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.redisAddr == "" {
				return fmt.Errorf("--redis-addr or REDIS_URL is required")
			}

			redisClient, err := connectRedis(cmd.Context(), opts.redisAddr)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			reader := store.NewReader(redisClient)

			runID := ""
			if len(args) == 1 {
				runID = args[0]
			} else {
				runs, err := reader.Runs(cmd.Context(), 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no stored runs")
				}
				runID = runs[0]
			}

			return showRun(cmd, reader, runID)
		},
	}
}

func showRun(cmd *cobra.Command, reader *store.Reader, runID string) error {
	themes, err := reader.Themes(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(themes) == 0 {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}

	for _, theme := range themes {
		stored, err := reader.Get(cmd.Context(), runID, theme)
		if err != nil {
			return fmt.Errorf("run %s, theme %s: %w", runID, theme, err)
		}
		if err := report.Write(cmd.OutOrStdout(), report.ThemeReport{
			Theme:    stored.Theme,
			Rows:     stored.Rows,
			Markdown: stored.Markdown,
		}); err != nil {
			return err
		}
	}
	return nil
}

func newRunsCmd(opts *options) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored run ids, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.redisAddr == "" {
				return fmt.Errorf("--redis-addr or REDIS_URL is required")
			}

			redisClient, err := connectRedis(cmd.Context(), opts.redisAddr)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			runs, err := store.NewReader(redisClient).Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 20, "Maximum number of runs to list (0 lists all)")

	return cmd
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("hapi-coverage version %s\n", version)
		},
	}
}
