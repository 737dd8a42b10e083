package main

import (
	"testing"

	"parla/session"
	"parla/stats"
)

func TestDashboardScopesToActiveLanguage(t *testing.T) {
	m := newTUIModel(nil, nil, "dark")
	m.snap = session.Snapshot{Language: "de"}
	m.allStats = []stats.WordStat{
		{DisplayWord: "hund", Language: "de", Occurrences: 2, CategorySamples: []int{2, 2}},
		{DisplayWord: "cat", Language: "en", Occurrences: 1, CategorySamples: []int{2}},
	}

	m.refreshTable()
	rows := m.tbl.Rows()
	if len(rows) != 1 || rows[0][0] != "hund" {
		t.Fatalf("rows = %v, want only the practice language", rows)
	}

	m.langOnly = false
	m.refreshTable()
	if got := len(m.tbl.Rows()); got != 2 {
		t.Errorf("unscoped rows = %d, want 2", got)
	}
}
