package config

import (
	"fmt"
	"slices"
	"strings"

	"qarzhy/internal/core"

	"github.com/BurntSushi/toml"
)

// Chart is the externally supplied shape of the ledger: the fixed account
// set, the closed segment set and the category suggestions shown on forms.
//
//	accounts = ["Каспи", "Халық"]
//	segments = ["Business", "Personal"]
//	expense_categories = ["Тамақ", "Көлік"]
//	income_categories = ["Жалақы"]
type Chart struct {
	Accounts          []string `toml:"accounts" json:"accounts"`
	Segments          []string `toml:"segments" json:"segments"`
	ExpenseCategories []string `toml:"expense_categories" json:"expense_categories"`
	IncomeCategories  []string `toml:"income_categories" json:"income_categories"`
}

func DefaultChart() Chart {
	return Chart{
		Accounts:          []string{"Каспи", "Халық", "Freedom", "Халық Инвест", "Қолма-қол"},
		Segments:          []string{"Business", "Personal"},
		ExpenseCategories: []string{"Тамақ", "Көлік", "Тұрғын үй", "Бизнес шығын", "Денсаулық", "Басқа"},
		IncomeCategories:  []string{"Жалақы", "Табыс", "Сыйлық", "Бизнес табыс"},
	}
}

// LoadChart reads a TOML chart. An empty path yields DefaultChart; lists
// missing from the file keep their defaults.
func LoadChart(path string) (Chart, error) {
	chart := DefaultChart()
	if path == "" {
		return chart, nil
	}

	var file Chart
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Chart{}, fmt.Errorf("decode chart %s: %w", path, err)
	}
	if len(file.Accounts) > 0 {
		chart.Accounts = file.Accounts
	}
	if len(file.Segments) > 0 {
		chart.Segments = file.Segments
	}
	if len(file.ExpenseCategories) > 0 {
		chart.ExpenseCategories = file.ExpenseCategories
	}
	if len(file.IncomeCategories) > 0 {
		chart.IncomeCategories = file.IncomeCategories
	}

	chart.Accounts = clean(chart.Accounts)
	chart.Segments = clean(chart.Segments)
	chart.ExpenseCategories = clean(chart.ExpenseCategories)
	chart.IncomeCategories = clean(chart.IncomeCategories)

	if err := chart.Validate(); err != nil {
		return Chart{}, fmt.Errorf("chart %s: %w", path, err)
	}
	return chart, nil
}

func (c Chart) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("chart must list at least one account")
	}
	if len(c.Segments) == 0 {
		return fmt.Errorf("chart must list at least one segment")
	}
	for _, cat := range append(slices.Clone(c.ExpenseCategories), c.IncomeCategories...) {
		if cat == core.CategoryTransfer || cat == core.CategoryDebt || cat == core.CategoryDebtRepayment {
			return fmt.Errorf("category %q is reserved", cat)
		}
	}
	return nil
}

func (c Chart) HasAccount(name string) bool {
	return slices.Contains(c.Accounts, name)
}

func (c Chart) HasSegment(s core.Segment) bool {
	return slices.Contains(c.Segments, string(s))
}

// SegmentList returns the configured segments as typed values.
func (c Chart) SegmentList() []core.Segment {
	out := make([]core.Segment, len(c.Segments))
	for i, s := range c.Segments {
		out[i] = core.Segment(s)
	}
	return out
}

// clean trims entries and drops blanks and duplicates, keeping order.
func clean(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
