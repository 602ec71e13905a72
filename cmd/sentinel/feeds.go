package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/cli"
	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/feed"
)

func feedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage RSS feeds that trigger contract checks",
		Example: `  # Check a contract whenever its event feed publishes something new
  sentinel feeds add 2770000000000000001 https://zakupki.gov.ru/epz/contract/rss?reestrNumber=2770000000000000001

  # Poll every feed every ten minutes
  sentinel feeds poll --watch`,
	}

	cmd.AddCommand(feedsAddCmd())
	cmd.AddCommand(feedsListCmd())
	cmd.AddCommand(feedsPollCmd())
	return cmd
}

func feedsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> <feed-url>",
		Short: "Attach a feed to a tracked contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetFeed(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Feed attached to %s", args[0])))
			return nil
		},
	}
}

func feedsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List attached feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			feeds, err := store.ListFeeds(ctx)
			if err != nil {
				return err
			}
			if len(feeds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No feeds attached."))
				return nil
			}

			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("FEED"),
				cli.TableHeaderStyle.Render("LAST EVENT"),
				cli.TableHeaderStyle.Render("POLLED"),
			}, "\t"))
			for _, f := range feeds {
				polled := "never"
				if f.LastPolled != nil {
					polled = cli.FormatRelativeTime(*f.LastPolled, now)
				}
				last := f.LastPubDate
				if last == "" {
					last = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.FeedURL, last, polled)
			}
			return w.Flush()
		},
	}
}

func feedsPollCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll every feed once, or continuously with --watch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			poller := feed.NewPoller(a.store, a.orch, a.notifier, feed.Config{
				NotifyDestination: cfg.Notify.FeedDestination(),
				Timeout:           cfg.Feed.Timeout,
				TriggerCheck:      cfg.Feed.TriggerCheck,
			}, a.logger)

			if watch {
				a.logger.Info("polling feeds", "interval", cfg.Feed.Interval)
				return poller.Run(ctx, cfg.Feed.Interval, common.RealClock{})
			}

			report, err := poller.Poll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range report.Events {
				fmt.Fprintln(out, cli.FormatChange(fmt.Sprintf("%s: %s", e.ID, e.Item.Title)))
			}
			for _, res := range report.Triggered {
				if line := cli.ResultLine(res); line != "" {
					fmt.Fprintln(out, line)
				}
			}
			for _, f := range report.Failed {
				fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", f.ID, f.Err)))
			}
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Polled %d feeds, %d new events, %d checks triggered",
				report.Polled, len(report.Events), len(report.Triggered))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling at feed.interval until interrupted")
	return cmd
}
