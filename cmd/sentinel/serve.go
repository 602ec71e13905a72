package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/api"
	"github.com/Veraticus/contract-sentinel/internal/cli"
	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/feed"
	"github.com/Veraticus/contract-sentinel/internal/session"
	"github.com/Veraticus/contract-sentinel/internal/watch"
)

func watchCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check contracts as soon as new dumps land in a directory",
		Long: `Watch the dump directory recursively and run a silent check for every
tracked contract whose dump file is created or rewritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = cfg.Fetch.DumpDir
			}
			if dir == "" {
				return fmt.Errorf("%w: fetch.dump_dir or --dir", common.ErrMissingConfig)
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Watch", "")
			ctx := handler.HandleInterrupts(cmd.Context())

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			w := newWatcher(a, dir)
			out := cmd.OutOrStdout()
			w.OnCheck(func(res engine.CheckResult) {
				if line := cli.ResultLine(res); line != "" {
					fmt.Fprintln(out, line)
				} else {
					fmt.Fprintln(out, cli.FormatSuccess(res.ID+": no changes"))
				}
			})

			fmt.Fprintln(out, cli.FormatInfo("Watching "+dir))
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to watch (default: fetch.dump_dir)")
	return cmd
}

func newWatcher(a *app, dir string) *watch.Watcher {
	return watch.New(dir, a.orch, a.store, cfg.Watch.Debounce, a.logger)
}

func serveCmd() *cobra.Command {
	var (
		addr      string
		withFeeds bool
		watchDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the registry and check operations over HTTP. With --feeds the RSS
poller runs alongside, with --watch-dir the dump watcher does.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			apiCfg := cfg.API
			if addr != "" {
				apiCfg.Addr = addr
			}
			if apiCfg.JWTSecret == "" {
				a.logger.Warn("api.jwt_secret not set; the API is unauthenticated")
			}

			sessions := session.NewStore(apiCfg.SessionTTL, a.clock)
			sessions.StartCleanup(time.Minute)
			defer sessions.Stop()

			var wg sync.WaitGroup
			if withFeeds {
				poller := feed.NewPoller(a.store, a.orch, a.notifier, feed.Config{
					NotifyDestination: cfg.Notify.FeedDestination(),
					Timeout:           cfg.Feed.Timeout,
					TriggerCheck:      cfg.Feed.TriggerCheck,
				}, a.logger)
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = poller.Run(ctx, cfg.Feed.Interval, a.clock)
				}()
			}
			if watchDir != "" {
				w := newWatcher(a, watchDir)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := w.Run(ctx); err != nil {
						a.logger.Error("dump watcher stopped", "error", err)
					}
				}()
			}

			server := api.NewServer(a.orch, sessions, a.clock, apiCfg, a.logger)
			err = server.Run(ctx)
			cancel()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: api.addr)")
	cmd.Flags().BoolVar(&withFeeds, "feeds", false, "Poll RSS feeds in the background")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "Watch this dump directory in the background")
	return cmd
}
