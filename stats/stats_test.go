package stats

import (
	"testing"
	"time"

	"parla/store"
)

func mistake(word, lang string, category int) store.MistakeRecord {
	return store.MistakeRecord{
		Word:      word,
		RealIPA:   "ɹ",
		SpokenIPA: "s",
		Category:  category,
		Language:  lang,
		Timestamp: time.Now(),
	}
}

func TestAggregateGroupsByLowercaseWordAndLanguage(t *testing.T) {
	records := []store.MistakeRecord{
		mistake("Through", "en", 2),
		mistake("through", "en", 1),
		mistake("through", "de", 0),
	}

	stats := Aggregate(records)
	if len(stats) != 2 {
		t.Fatalf("groups = %d, want 2 (case-folded, split by language)", len(stats))
	}

	en := stats[0]
	if en.Occurrences != 2 || en.BadCount != 1 {
		t.Errorf("en group = %+v", en)
	}
	if en.DisplayWord != "Through" {
		t.Errorf("DisplayWord = %q, want first seen", en.DisplayWord)
	}
	if len(en.SpokenIPASamples) != 2 || len(en.CategorySamples) != 2 {
		t.Errorf("samples = %d/%d", len(en.SpokenIPASamples), len(en.CategorySamples))
	}
}

func TestAvgAccuracy(t *testing.T) {
	tests := []struct {
		name       string
		categories []int
		want       int
	}{
		{"empty", nil, 0},
		{"all good", []int{0, 0}, 90},
		{"mixed", []int{0, 1, 2}, 58}, // (90+65+20)/3 = 58.33
		{"out of range counts as bad", []int{9}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvgAccuracy(tt.categories); got != tt.want {
				t.Errorf("AvgAccuracy(%v) = %d, want %d", tt.categories, got, tt.want)
			}
		})
	}
}

func TestWorstCategoryMonotonic(t *testing.T) {
	base := []int{0, 1, 0}
	before := WorstCategory(base)
	after := WorstCategory(append(append([]int{}, base...), 2))
	if after < before {
		t.Errorf("worst went from %d to %d after adding a bad occurrence", before, after)
	}
	if after != 2 {
		t.Errorf("worst = %d, want 2", after)
	}
	if WorstCategory(nil) != 0 {
		t.Error("empty group should report category 0")
	}
	if WorstCategory([]int{1, 1}) != 1 {
		t.Error("okay-only group should report category 1")
	}
}

func TestFilter(t *testing.T) {
	stats := Aggregate([]store.MistakeRecord{
		mistake("weather", "en", 2),
		mistake("whether", "en", 1),
		mistake("wetter", "de", 2),
	})

	f := NewFilter()
	if got := f.Apply(stats); len(got) != 3 {
		t.Errorf("open filter kept %d", len(got))
	}

	f.Language = "en"
	if got := f.Apply(stats); len(got) != 2 {
		t.Errorf("language filter kept %d", len(got))
	}

	f.Category = 2
	got := f.Apply(stats)
	if len(got) != 1 || got[0].DisplayWord != "weather" {
		t.Errorf("category filter = %v", got)
	}

	f = NewFilter()
	f.Query = "WEA"
	got = f.Apply(stats)
	if len(got) != 1 || got[0].DisplayWord != "weather" {
		t.Errorf("query filter = %v", got)
	}
}

func TestSortStable(t *testing.T) {
	stats := Aggregate([]store.MistakeRecord{
		mistake("bb", "en", 2),
		mistake("aa", "en", 2),
		mistake("cc", "en", 0),
	})

	Sort(stats, SortByBadCount, true)
	if stats[0].BadCount != 1 || stats[2].BadCount != 0 {
		t.Errorf("descending bad-count order broken: %v", stats)
	}
	// bb and aa tie on bad count; stable sort keeps input order.
	if stats[0].DisplayWord != "bb" || stats[1].DisplayWord != "aa" {
		t.Errorf("tie order changed: %q, %q", stats[0].DisplayWord, stats[1].DisplayWord)
	}

	Sort(stats, SortByWord, false)
	if stats[0].DisplayWord != "aa" || stats[2].DisplayWord != "cc" {
		t.Errorf("word order = %q..%q", stats[0].DisplayWord, stats[2].DisplayWord)
	}
}

func TestTrendSeries(t *testing.T) {
	var records []store.HistoryRecord
	for i := range 40 {
		// Most recent first: score i is the i-th newest.
		records = append(records, store.HistoryRecord{Score: i})
	}

	series := TrendSeries(records)
	if len(series) != TrendLimit {
		t.Fatalf("series length = %d, want %d", len(series), TrendLimit)
	}
	// Oldest of the kept window first.
	if series[0] != 29 || series[len(series)-1] != 0 {
		t.Errorf("series = [%d ... %d], want [29 ... 0]", series[0], series[len(series)-1])
	}

	if got := TrendSeries(nil); len(got) != 0 {
		t.Errorf("empty history series = %v", got)
	}
}
