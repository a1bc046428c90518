package ledger

import (
	"sort"

	"qarzhy/internal/core"

	"github.com/shopspring/decimal"
)

// Position is the open debt exposure of one segment.
type Position struct {
	OthersOweMe decimal.Decimal `json:"others_owe_me"`
	IOwe        decimal.Decimal `json:"i_owe"`
}

// DebtPosition sums open debts by direction. Closed debts do not count.
func DebtPosition(debts []core.Debt, segment core.Segment) Position {
	p := Position{OthersOweMe: decimal.Zero, IOwe: decimal.Zero}
	for _, d := range debts {
		if d.Segment != segment || !d.IsOpen() || d.Amount.IsNegative() {
			continue
		}
		switch d.Direction {
		case core.LentByMe:
			p.OthersOweMe = p.OthersOweMe.Add(d.Amount)
		case core.BorrowedByMe:
			p.IOwe = p.IOwe.Add(d.Amount)
		}
	}
	return p
}

// OpenDebts returns the open debts of every segment, oldest first.
func OpenDebts(debts []core.Debt) []core.Debt {
	out := make([]core.Debt, 0)
	for _, d := range debts {
		if d.IsOpen() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}
