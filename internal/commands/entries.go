package commands

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"qarzhy/internal/core"
	"qarzhy/internal/services"
)

type entryFlags struct {
	segment string
	date    string
	amount  string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.segment, "segment", "s", "", "segment (required)")
	cmd.Flags().StringVar(&f.date, "date", "", "date YYYY-MM-DD, defaults to today")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", `amount, e.g. "1 500,50" (required)`)
	_ = cmd.MarkFlagRequired("segment")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *entryFlags) parse() (core.Date, decimal.Decimal, error) {
	amount, err := core.ParseAmount(f.amount)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	if f.date == "" {
		return core.Date{}, amount, nil
	}
	date, err := core.ParseDate(f.date)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	return date, amount, nil
}

func newEntryCommand(a *app, kind string) *cobra.Command {
	var (
		flags       entryFlags
		category    string
		account     string
		description string
	)

	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Record an %s", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, amount, err := flags.parse()
			if err != nil {
				return err
			}
			in := services.EntryInput{
				Date:        date,
				Category:    category,
				Account:     account,
				Amount:      amount,
				Description: description,
			}
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				add := env.Ledger.AddExpense
				if kind == "income" {
					add = env.Ledger.AddIncome
				}
				tx, err := add(ctx, core.Segment(flags.segment), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Recorded %s\n", describe(tx))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (required)")
	cmd.Flags().StringVar(&account, "account", "", "account (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free text description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newTransferCommand(a *app) *cobra.Command {
	var (
		flags    entryFlags
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts of a segment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, amount, err := flags.parse()
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				tx, err := env.Ledger.AddTransfer(ctx, core.Segment(flags.segment), services.TransferInput{
					Date:        date,
					Source:      from,
					Destination: to,
					Amount:      amount,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Recorded %s\n", describe(tx))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&from, "from", "", "source account (required)")
	cmd.Flags().StringVar(&to, "to", "", "destination account (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
