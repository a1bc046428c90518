package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"qarzhy/internal/core"
)

var transactionHeader = []any{
	"ID", "Date", "Segment", "Kind", "Category", "Account",
	"Source", "Destination", "Amount", "Description", "Debt",
}

var debtHeader = []any{
	"ID", "Date", "Segment", "Name", "Direction", "Account",
	"Amount", "Status", "Closed at",
}

func transactionRow(tx core.Transaction) []any {
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.Date.String(),
		string(tx.Segment),
		string(tx.Kind),
		literal(tx.Category),
		literal(tx.Account),
		literal(tx.SourceAccount),
		literal(tx.DestAccount),
		tx.Amount.InexactFloat64(),
		literal(tx.Description),
		tx.DebtID,
	}
}

func debtRow(d core.Debt) []any {
	closedAt := ""
	if !d.ClosedAt.IsZero() {
		closedAt = d.ClosedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		d.ID,
		d.Date.String(),
		string(d.Segment),
		literal(d.Name),
		string(d.Direction),
		literal(d.Account),
		d.Amount.InexactFloat64(),
		string(d.Status),
		closedAt,
	}
}

// literal keeps USER_ENTERED from reading free text as a formula: a leading
// apostrophe makes Sheets store the rest as plain text.
func literal(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// rangeStartRow returns the first row number of an A1 range such as
// "'Sheet 1'!A7:K7", or 0 when there is none.
func rangeStartRow(rng string) int {
	cells := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		cells = rng[i+1:]
	}
	start, _, _ := strings.Cut(cells, ":")
	row, err := strconv.Atoi(strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$"))
	if err != nil || row < 1 {
		return 0
	}
	return row
}

// lastColumn returns the A1 letter of the header's last column.
func lastColumn(header []any) string {
	return string(rune('A' + len(header) - 1))
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
