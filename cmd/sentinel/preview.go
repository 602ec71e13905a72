package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contract-sentinel/internal/cli"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
)

func previewCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "preview <id>[,<id>...]...",
		Short: "Look up contracts before registering them",
		Long: `Ask the collaborator for a lightweight preview of a batch of contracts,
then register and check the ones that were found after confirmation.`,
		Example: `  sentinel preview 2770000000000000001,2770000000000000002
  sentinel preview 2770000000000000001 2770000000000000002 --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			previews, err := a.orch.Preview(ctx, ids)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := cli.RenderPreviews(out, previews); err != nil {
				return err
			}

			var found []string
			for _, p := range previews {
				if p.Found() {
					found = append(found, p.ID)
				}
			}
			if len(found) == 0 {
				fmt.Fprintln(out, cli.FormatWarning("No contracts found."))
				return nil
			}

			if !yes {
				prompter := cli.NewPrompter(os.Stdin, out)
				ok, err := prompter.Confirm(ctx, fmt.Sprintf("Register %d found contracts?", len(found)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.FormatInfo("Nothing registered."))
					return nil
				}
			}

			for _, id := range found {
				if _, _, err := a.orch.Register(ctx, id); err != nil {
					return err
				}
			}
			cli.RenderReport(out, a.orch.CheckAll(ctx, found))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Register without asking")
	return cmd
}

// parseIDArgs splits comma separated arguments and drops duplicates.
func parseIDArgs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := normalize.ParseID(part)
			if err != nil {
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, normalize.ErrMissingID
	}
	return ids, nil
}
