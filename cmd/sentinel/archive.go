package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/archive"
	"github.com/Veraticus/contract-sentinel/internal/cli"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived collaborator payloads",
	}
	cmd.AddCommand(archiveListCmd())
	cmd.AddCommand(archiveShowCmd())
	return cmd
}

func archiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "List archived payloads of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := buildArchiver(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return errArchiveDisabled
			}

			keys, err := store.List(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No payloads archived for "+args[0]))
				return nil
			}
			for _, key := range keys {
				_, at, err := archive.ParseObjectName(key)
				if err != nil {
					fmt.Fprintln(out, key)
					continue
				}
				fmt.Fprintf(out, "%s  %s\n", at.Local().Format("2006-01-02 15:04:05"), key)
			}
			return nil
		},
	}
}

func archiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print an archived payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := buildArchiver(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return errArchiveDisabled
			}

			payload, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
}
