package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"qarzhy/internal/core"
)

func newDeleteCommand(a *app) *cobra.Command {
	var (
		last    bool
		segment string
	)

	cmd := &cobra.Command{
		Use:   "delete [TRANSACTION_ID]",
		Short: "Delete a transaction, or the latest one of a segment with --last",
		Args: func(cmd *cobra.Command, args []string) error {
			if last {
				if segment == "" {
					return fmt.Errorf("--last needs --segment")
				}
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				var id int64
				if last {
					o, err := env.Ledger.Overview(ctx, core.Segment(segment))
					if err != nil {
						return err
					}
					if o.Latest == nil {
						fmt.Fprintf(a.out, "Segment %s has no entries, nothing changed\n", segment)
						return nil
					}
					id = o.Latest.ID
				} else {
					parsed, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil || parsed <= 0 {
						return fmt.Errorf("transaction id must be a positive integer, got %q", args[0])
					}
					id = parsed
				}

				res, err := env.Ledger.DeleteTransaction(ctx, id)
				if err != nil {
					return err
				}
				if !res.Deleted {
					fmt.Fprintf(a.out, "No transaction #%d, nothing changed\n", id)
					return nil
				}
				fmt.Fprintf(a.out, "Deleted %s\n", describe(*res.Transaction))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&last, "last", false, "delete the segment's latest entry")
	cmd.Flags().StringVarP(&segment, "segment", "s", "", "segment for --last")
	return cmd
}
