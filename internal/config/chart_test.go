package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadChart_Default(t *testing.T) {
	chart, err := LoadChart("")
	if err != nil {
		t.Fatalf("LoadChart: %v", err)
	}
	if len(chart.Accounts) != 5 || !chart.HasAccount("Халық Инвест") {
		t.Errorf("unexpected default accounts %v", chart.Accounts)
	}
	if !chart.HasSegment("Business") || !chart.HasSegment("Personal") || chart.HasSegment("Other") {
		t.Errorf("unexpected default segments %v", chart.Segments)
	}
}

func TestLoadChart_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart.toml")
	content := `
accounts = ["Cash", " Bank ", "Cash", ""]
segments = ["Home"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write chart: %v", err)
	}

	chart, err := LoadChart(path)
	if err != nil {
		t.Fatalf("LoadChart: %v", err)
	}
	if strings.Join(chart.Accounts, ",") != "Cash,Bank" {
		t.Errorf("accounts = %v, want [Cash Bank]", chart.Accounts)
	}
	if len(chart.SegmentList()) != 1 || chart.SegmentList()[0] != "Home" {
		t.Errorf("segments = %v", chart.Segments)
	}
	if len(chart.ExpenseCategories) == 0 {
		t.Error("missing lists should keep their defaults")
	}
}

func TestLoadChart_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"malformed toml", write("bad.toml", "accounts = [")},
		{"reserved category", write("reserved.toml", `expense_categories = ["Аударым"]`)},
		{"blank segments", write("blank.toml", `segments = [" "]`)},
		{"missing file", filepath.Join(dir, "none.toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadChart(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
