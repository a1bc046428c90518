package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qarzhy/internal/core"
	"qarzhy/internal/services"
)

func newBalancesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balances [segment]",
		Short: "Show account balances, category shares and the debt position",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				if len(args) == 1 {
					o, err := env.Ledger.Overview(ctx, core.Segment(args[0]))
					if err != nil {
						return err
					}
					return printOverview(a.out, o)
				}
				d, err := env.Ledger.Dashboard(ctx)
				if err != nil {
					return err
				}
				for i, o := range d.Segments {
					if i > 0 {
						fmt.Fprintln(a.out)
					}
					if err := printOverview(a.out, o); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newDebtsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debts",
		Short: "List open debts across all segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				d, err := env.Ledger.Dashboard(ctx)
				if err != nil {
					return err
				}
				if len(d.OpenDebts) == 0 {
					fmt.Fprintln(a.out, "No open debts.")
					return nil
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tSEGMENT\tNAME\tDIRECTION\tACCOUNT\tAMOUNT")
				for _, debt := range d.OpenDebts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						debt.ID, debt.Date, debt.Segment, debt.Name, debt.Direction,
						debt.Account, core.FormatAmount(debt.Amount))
				}
				return tw.Flush()
			})
		},
	}
}

func printOverview(w io.Writer, o services.Overview) error {
	fmt.Fprintf(w, "== %s ==\n", o.Segment)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, b := range o.Balances {
		fmt.Fprintf(tw, "%s\t%s\t\n", b.Account, core.FormatAmount(b.Balance))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", core.FormatAmount(o.Total))
	fmt.Fprintf(tw, "Others owe me\t%s\t\n", core.FormatAmount(o.Debts.OthersOweMe))
	fmt.Fprintf(tw, "I owe\t%s\t\n", core.FormatAmount(o.Debts.IOwe))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(o.Categories) > 0 {
		fmt.Fprintln(w, "Expenses by category:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
		for _, c := range o.Categories {
			fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\t\n", c.Category, core.FormatAmount(c.Amount), c.Percent)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if o.Latest != nil {
		fmt.Fprintf(w, "Latest entry: #%d %s %s %s\n",
			o.Latest.ID, o.Latest.Date, o.Latest.Kind, core.FormatAmount(o.Latest.Amount))
	}
	return nil
}

func describe(tx core.Transaction) string {
	if tx.Kind == core.KindTransfer {
		return fmt.Sprintf("#%d %s %s %s -> %s %s (%s)", tx.ID, tx.Date, tx.Kind,
			tx.SourceAccount, tx.DestAccount, core.FormatAmount(tx.Amount), tx.Segment)
	}
	return fmt.Sprintf("#%d %s %s %s %s on %s (%s)", tx.ID, tx.Date, tx.Kind,
		core.FormatAmount(tx.Amount), tx.Category, tx.Account, tx.Segment)
}
