package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"qarzhy/internal/core"
	"qarzhy/internal/services"
)

func newDebtCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debt",
		Short: "Open or close debts",
	}
	cmd.AddCommand(newDebtOpenCommand(a), newDebtCloseCommand(a))
	return cmd
}

func newDebtOpenCommand(a *app) *cobra.Command {
	var (
		flags     entryFlags
		name      string
		direction string
		account   string
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Record money lent or borrowed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, amount, err := flags.parse()
			if err != nil {
				return err
			}
			dir, err := parseDirection(direction)
			if err != nil {
				return err
			}
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				res, err := env.Ledger.OpenDebt(ctx, core.Segment(flags.segment), services.DebtInput{
					Date:      date,
					Name:      name,
					Direction: dir,
					Account:   account,
					Amount:    amount,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Opened debt %s (%s, %s)\nRecorded %s\n",
					res.Debt.ID, res.Debt.Name, res.Debt.Direction, describe(res.Mirror))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "counterparty (required)")
	cmd.Flags().StringVar(&direction, "direction", "", "lent or borrowed (required)")
	cmd.Flags().StringVar(&account, "account", "", "account the money moved through (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("direction")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newDebtCloseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close DEBT_ID",
		Short: "Mark a debt repaid and record the repayment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				res, err := env.Ledger.CloseDebt(ctx, args[0])
				if err != nil {
					return err
				}
				switch {
				case res.Closed:
					fmt.Fprintf(a.out, "Closed debt %s\nRecorded %s\n", args[0], describe(*res.Mirror))
				case res.Debt != nil:
					fmt.Fprintf(a.out, "Debt %s is already closed, nothing changed\n", args[0])
				default:
					fmt.Fprintf(a.out, "No debt %s, nothing changed\n", args[0])
				}
				return nil
			})
		},
	}
}

func parseDirection(s string) (core.Direction, error) {
	switch s {
	case "lent", string(core.LentByMe):
		return core.LentByMe, nil
	case "borrowed", string(core.BorrowedByMe):
		return core.BorrowedByMe, nil
	}
	return "", fmt.Errorf("%w: direction must be lent or borrowed, got %q", core.ErrValidation, s)
}
