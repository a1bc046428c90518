package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qarzhy/internal/core"
	"qarzhy/internal/legacy"
)

func newImportLegacyCommand(a *app) *cobra.Command {
	var (
		transactionsPath string
		debtsPath        string
		dryRun           bool
	)

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import CSV dumps of the old finance_transactions and finance_debts tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				rows, badRows, err := readLegacyTransactions(transactionsPath, env.Chart.Accounts)
				if err != nil {
					return err
				}
				debts, badDebts, err := readLegacyDebts(debtsPath)
				if err != nil {
					return err
				}

				im := legacy.NewImporter(env.Store, env.Chart, env.Logger)
				plan := im.Plan(rows, debts)
				plan.Report.Skipped = append(append(badRows, badDebts...), plan.Report.Skipped...)

				report := plan.Report
				if !dryRun {
					report, err = im.Import(ctx, plan)
					if err != nil {
						return err
					}
				}
				printReport(a, report, dryRun)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&transactionsPath, "transactions", "", "finance_transactions CSV file (required)")
	cmd.Flags().StringVar(&debtsPath, "debts", "", "finance_debts CSV file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and plan without writing")
	_ = cmd.MarkFlagRequired("transactions")
	return cmd
}

func readLegacyTransactions(path string, accounts []string) ([]legacy.TransactionRow, []legacy.RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transactions dump: %w", err)
	}
	defer f.Close()
	return legacy.ReadTransactions(f, accounts)
}

func readLegacyDebts(path string) ([]core.Debt, []legacy.RowError, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("debts dump %s does not exist", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open debts dump: %w", err)
	}
	defer f.Close()
	return legacy.ReadDebts(f)
}

func printReport(a *app, r legacy.Report, dryRun bool) {
	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Fprintf(a.out, "%s %d transactions and %d debts (%d closed)\n", verb, r.Transactions, r.Debts, r.ClosedDebts)
	fmt.Fprintf(a.out, "Linked %d legacy mirror rows, dropped %d duplicates, synthesized %d mirrors\n",
		r.MatchedMirrors, r.DroppedDuplicates, r.SynthesizedMirrors)
	if r.UnlinkedDebtRows > 0 {
		fmt.Fprintf(a.out, "%d debt rows had no matching debt and were kept as plain entries\n", r.UnlinkedDebtRows)
	}
	for _, e := range r.Skipped {
		fmt.Fprintf(a.out, "skipped %s\n", e)
	}
}
