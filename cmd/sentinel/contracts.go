package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/cli"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

func registerCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "register <id-or-url>...",
		Short: "Start tracking contracts",
		Long: `Register contracts by registry number or by contract card URL.

A registered contract is a stub until its first successful check.`,
		Example: `  sentinel register 2770000000000000001
  sentinel register "https://zakupki.gov.ru/epz/contract/contractCard/common-info.html?reestrNumber=2770000000000000001" --check`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id, created, err := a.orch.Register(ctx, arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				if created {
					fmt.Fprintln(out, cli.FormatSuccess("Registered "+id))
				} else {
					fmt.Fprintln(out, cli.FormatInfo(id+" is already tracked"))
				}
			}

			if !check {
				return nil
			}
			if len(ids) == 1 {
				cli.RenderResult(out, a.orch.CheckOne(ctx, ids[0], false))
				return nil
			}
			cli.RenderReport(out, a.orch.CheckAll(ctx, ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check the contracts right after registering")
	return cmd
}

func removeCmd() *cobra.Command {
	var noCheckpoint bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Stop tracking a contract and delete its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !noCheckpoint {
				manager, err := store.NewCheckpointManager()
				if err != nil {
					return fmt.Errorf("failed to create checkpoint manager: %w", err)
				}
				if _, err := manager.AutoCheckpoint(ctx, "remove"); err != nil {
					return err
				}
			}

			if err := store.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Removed "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "Skip the automatic checkpoint")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked contracts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.ListEntries(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No contracts tracked. Add one with: sentinel register <id>"))
				return nil
			}
			return cli.RenderEntries(cmd.OutOrStdout(), entries, time.Now())
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		limit     int
		dimension string
		payloads  bool
	)

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show checks and change snapshots of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id := args[0]
			entry, err := store.GetEntry(ctx, id)
			if err != nil {
				return err
			}
			checks, err := store.ListChecks(ctx, id, limit)
			if err != nil {
				return err
			}
			snaps, err := store.ListSnapshots(ctx, id, model.Dimension(dimension), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Contract %s", entry.ID)))
			if entry.Customer != "" {
				fmt.Fprintf(out, "Customer: %s\n", entry.Customer)
			}
			if entry.SheetURL != "" {
				fmt.Fprintf(out, "Sheet:    %s\n", entry.SheetURL)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{
				cli.TableHeaderStyle.Render("CHECKED"),
				cli.TableHeaderStyle.Render("PRICE"),
				cli.TableHeaderStyle.Render("OBJECTS"),
				cli.TableHeaderStyle.Render("REQUISITES"),
			}, "\t"))
			for _, c := range checks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.CheckedAt.Format("2006-01-02 15:04:05"),
					cli.FormatMoney(c.Price),
					shortHash(c.ObjectsHash),
					shortHash(c.RequisitesHash))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, cli.BoldStyle.Render(fmt.Sprintf("%s changes: %d", dimension, len(snaps))))
			for _, s := range snaps {
				fmt.Fprintf(out, "  %s  %s\n", s.ChangedAt.Format("2006-01-02 15:04:05"), shortHash(s.Hash))
				if payloads {
					fmt.Fprintln(out, cli.SubtleStyle.Render(s.Payload))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show (0 for all)")
	cmd.Flags().StringVar(&dimension, "dimension", string(model.DimensionObjects), "Snapshot dimension (objects, requisites)")
	cmd.Flags().BoolVar(&payloads, "payloads", false, "Print snapshot payloads")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
