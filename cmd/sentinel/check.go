package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/cli"
)

func checkCmd() *cobra.Command {
	var silent bool

	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Check one tracked contract now",
		Long: `Fetch the contract, compare it with the last observation, record the
check and update its spreadsheet. A change is announced unless --silent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			id := args[0]
			if _, err := a.store.GetEntry(ctx, id); err != nil {
				return fmt.Errorf("contract %s: %w", id, err)
			}

			res := a.orch.CheckOne(ctx, id, silent)
			cli.RenderResult(cmd.OutOrStdout(), res)
			return res.Err
		},
	}

	cmd.Flags().BoolVar(&silent, "silent", false, "Do not send a change notification")
	return cmd
}

func sweepCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Check every tracked contract",
		Long: `Check all tracked contracts one at a time. A failing contract is reported
and the sweep moves on. Ctrl+C stops before the next contract; checks that
already finished are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Sweep", "sentinel sweep")
			ctx := handler.HandleInterrupts(cmd.Context())

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.store.ListIDs(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No contracts tracked."))
				return nil
			}

			orch := a.orch
			var progress *cli.SweepProgress
			if !noProgress {
				progress = cli.NewSweepProgress(cmd.ErrOrStderr(), len(ids))
				orch = orch.WithProgress(progress.Callback())
			}

			report, err := orch.Sweep(ctx)
			if progress != nil {
				progress.Finish()
			}
			if err != nil {
				return err
			}

			cli.RenderReport(cmd.OutOrStdout(), report)
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d contracts failed", len(report.Failed), report.Processed+len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}
