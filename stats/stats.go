// Package stats aggregates stored mistake records into per-word statistics
// for the dashboard: grouping, filtering, multi-key sorting and the score
// trend series.
package stats

import (
	"math"
	"sort"
	"strings"

	"parla/scorer"
	"parla/store"
)

// WordStat is one aggregated (word, language) group. Derived on demand from
// the mistake store, never persisted.
type WordStat struct {
	DisplayWord      string
	Language         string
	LastKnownRealIPA string
	SpokenIPASamples []string
	CategorySamples  []int
	Occurrences      int
	BadCount         int
}

// categoryPct maps severity categories to representative percentages. The
// resulting average is an approximation of accuracy, not a recomputation of
// the original continuous score.
var categoryPct = [3]float64{90, 65, 20}

// Aggregate groups mistake records by lowercase word and language. Records
// arrive most recent first, so the first real IPA seen per group is the
// latest known one.
func Aggregate(records []store.MistakeRecord) []WordStat {
	type key struct {
		word string
		lang string
	}
	groups := map[key]*WordStat{}
	var order []key

	for _, rec := range records {
		k := key{word: strings.ToLower(rec.Word), lang: rec.Language}
		g, ok := groups[k]
		if !ok {
			g = &WordStat{
				DisplayWord:      rec.Word,
				Language:         rec.Language,
				LastKnownRealIPA: rec.RealIPA,
			}
			groups[k] = g
			order = append(order, k)
		}
		g.SpokenIPASamples = append(g.SpokenIPASamples, rec.SpokenIPA)
		g.CategorySamples = append(g.CategorySamples, rec.Category)
		g.Occurrences++
		if rec.Category == scorer.CategoryBad {
			g.BadCount++
		}
	}

	out := make([]WordStat, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// AvgAccuracy maps each category to its representative percentage and
// averages, rounded to the nearest integer.
func AvgAccuracy(categories []int) int {
	if len(categories) == 0 {
		return 0
	}
	var sum float64
	for _, c := range categories {
		if c < 0 || c >= len(categoryPct) {
			c = scorer.CategoryBad
		}
		sum += categoryPct[c]
	}
	return int(math.Round(sum / float64(len(categories))))
}

// WorstCategory is pessimistic: one bad occurrence marks the whole group
// bad regardless of how many good ones surround it.
func WorstCategory(categories []int) int {
	worst := scorer.CategoryGood
	for _, c := range categories {
		if c >= scorer.CategoryBad {
			return scorer.CategoryBad
		}
		if c > worst {
			worst = c
		}
	}
	return worst
}

// AnyCategory disables the category filter.
const AnyCategory = -1

// Filter selects groups for display. Empty Language and Query match
// everything; Category filters on the group's worst category.
type Filter struct {
	Language string
	Category int
	Query    string
}

// NewFilter returns a filter matching every group.
func NewFilter() Filter {
	return Filter{Category: AnyCategory}
}

func (f Filter) match(s WordStat) bool {
	if f.Language != "" && s.Language != f.Language {
		return false
	}
	if f.Category >= 0 && WorstCategory(s.CategorySamples) != f.Category {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(s.DisplayWord), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// Apply returns the groups passing the filter, preserving input order.
func (f Filter) Apply(stats []WordStat) []WordStat {
	out := make([]WordStat, 0, len(stats))
	for _, s := range stats {
		if f.match(s) {
			out = append(out, s)
		}
	}
	return out
}

type SortKey int

const (
	SortByWord SortKey = iota
	SortByOccurrences
	SortByAvgAccuracy
	SortByBadCount
)

// Sort orders groups by the chosen key, stable so equal entries keep their
// prior relative order. descending flips the comparison, not the tie rule.
func Sort(stats []WordStat, key SortKey, descending bool) {
	less := func(a, b WordStat) bool {
		switch key {
		case SortByOccurrences:
			return a.Occurrences < b.Occurrences
		case SortByAvgAccuracy:
			return AvgAccuracy(a.CategorySamples) < AvgAccuracy(b.CategorySamples)
		case SortByBadCount:
			return a.BadCount < b.BadCount
		default:
			return strings.ToLower(a.DisplayWord) < strings.ToLower(b.DisplayWord)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if descending {
			return less(stats[j], stats[i])
		}
		return less(stats[i], stats[j])
	})
}

// TrendLimit bounds the score trend series to the most recent attempts.
const TrendLimit = 30

// TrendSeries extracts the score trend from history records (most recent
// first), returned oldest first for plotting.
func TrendSeries(records []store.HistoryRecord) []int {
	n := len(records)
	if n > TrendLimit {
		n = TrendLimit
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = records[i].Score
	}
	return out
}
