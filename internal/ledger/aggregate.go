// Package ledger turns the flat transaction and debt logs into balances,
// category breakdowns and debt positions, and expands user actions into the
// rows that must be appended to the logs.
//
// Every function here is pure: the logs are passed in, nothing is cached.
package ledger

import (
	"sort"

	"qarzhy/internal/core"

	"github.com/shopspring/decimal"
)

type AccountBalance struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type CategoryShare struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	// Percent is the share of the segment's expense total, 0..100.
	Percent float64 `json:"percent"`
}

// Balance computes one account's balance within a segment.
//
// Income adds, expense subtracts, a transfer moves its amount from the
// source leg to the destination leg. Malformed rows contribute zero.
func Balance(txs []core.Transaction, account string, segment core.Segment) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Segment != segment || tx.Amount.IsNegative() {
			continue
		}
		switch tx.Kind {
		case core.KindIncome:
			if tx.Account == account {
				total = total.Add(tx.Amount)
			}
		case core.KindExpense:
			if tx.Account == account {
				total = total.Sub(tx.Amount)
			}
		case core.KindTransfer:
			if !tx.IsTransferLeg() {
				continue
			}
			if tx.DestAccount == account {
				total = total.Add(tx.Amount)
			}
			if tx.SourceAccount == account {
				total = total.Sub(tx.Amount)
			}
		}
	}
	return total
}

// Balances computes the balance of every account, in the given order.
func Balances(txs []core.Transaction, accounts []string, segment core.Segment) []AccountBalance {
	out := make([]AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountBalance{Account: a, Balance: Balance(txs, a, segment)})
	}
	return out
}

// CategoryBreakdown sums expense amounts by category within a segment.
// Categories without rows are absent from the result.
func CategoryBreakdown(txs []core.Transaction, segment core.Segment) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Segment != segment || tx.Kind != core.KindExpense {
			continue
		}
		if tx.Category == core.CategoryTransfer || tx.Amount.IsNegative() {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// CategoryShares orders a breakdown by amount (desc, then name) and attaches
// each category's percentage of the total.
func CategoryShares(breakdown map[string]decimal.Decimal) []CategoryShare {
	total := decimal.Zero
	shares := make([]CategoryShare, 0, len(breakdown))
	for c, amt := range breakdown {
		total = total.Add(amt)
		shares = append(shares, CategoryShare{Category: c, Amount: amt})
	}
	sort.Slice(shares, func(i, j int) bool {
		if cmp := shares[i].Amount.Cmp(shares[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return shares[i].Category < shares[j].Category
	})
	if total.IsZero() {
		return shares
	}
	hundred := decimal.NewFromInt(100)
	for i := range shares {
		shares[i].Percent = shares[i].Amount.Mul(hundred).Div(total).Round(2).InexactFloat64()
	}
	return shares
}

// History returns the segment's rows sorted newest first. Rows on the same
// date keep the store's id order reversed so the last entered comes first.
func History(txs []core.Transaction, segment core.Segment) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if tx.Segment == segment {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Latest returns the most recently appended row of the segment, by id.
func Latest(txs []core.Transaction, segment core.Segment) (core.Transaction, bool) {
	var (
		latest core.Transaction
		found  bool
	)
	for _, tx := range txs {
		if tx.Segment != segment {
			continue
		}
		if !found || tx.ID > latest.ID {
			latest, found = tx, true
		}
	}
	return latest, found
}
