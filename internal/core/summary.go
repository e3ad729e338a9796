package core

import (
	"maps"
	"slices"
)

// CategoryTotals maps a category to the summed count of its records.
type CategoryTotals map[string]int64

// CategoryCount is one entry of a CategoryTotals in sorted form.
type CategoryCount struct {
	Category string
	Count    int64
}

// Report is the result bundle handed to the presentation layer for one
// location and date range.
type Report struct {
	Location   Location
	Range      DateRange
	Filtered   LocationSeries
	Comparison CategoryTotals // lecturer vs student only
	Proportion CategoryTotals // every category
	GrandTotal int64
}

// AggregateAll sums counts per distinct category.
func AggregateAll(s LocationSeries) CategoryTotals {
	totals := make(CategoryTotals)
	for _, r := range s.records {
		totals[r.Category] += r.Count
	}
	return totals
}

// AggregateSubset is AggregateAll restricted to the given categories.
// Categories with no records are absent from the result, not zero.
func AggregateSubset(s LocationSeries, categories []string) CategoryTotals {
	totals := make(CategoryTotals)
	if len(categories) == 0 {
		return totals
	}
	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}
	for _, r := range s.records {
		if _, ok := allowed[r.Category]; ok {
			totals[r.Category] += r.Count
		}
	}
	return totals
}

// TotalOf sums every count in the series.
func TotalOf(s LocationSeries) int64 {
	var total int64
	for _, r := range s.records {
		total += r.Count
	}
	return total
}

// ZeroFilled returns a copy of t that also holds a zero entry for every listed
// category missing from t. Charts that need a bar per category use this.
func ZeroFilled(t CategoryTotals, categories []string) CategoryTotals {
	out := t.Clone()
	for _, c := range categories {
		if _, ok := out[c]; !ok {
			out[c] = 0
		}
	}
	return out
}

func (t CategoryTotals) Clone() CategoryTotals {
	out := make(CategoryTotals, len(t))
	maps.Copy(out, t)
	return out
}

// Sum adds up every value.
func (t CategoryTotals) Sum() int64 {
	var sum int64
	for _, v := range t {
		sum += v
	}
	return sum
}

// Categories returns the keys sorted by name.
func (t CategoryTotals) Categories() []string {
	return slices.Sorted(maps.Keys(t))
}

// Sorted returns the entries ordered by category name.
func (t CategoryTotals) Sorted() []CategoryCount {
	out := make([]CategoryCount, 0, len(t))
	for _, c := range t.Categories() {
		out = append(out, CategoryCount{Category: c, Count: t[c]})
	}
	return out
}

// Share returns the category's fraction of the total, 0 when the total is 0.
func (t CategoryTotals) Share(category string) float64 {
	sum := t.Sum()
	if sum == 0 {
		return 0
	}
	return float64(t[category]) / float64(sum)
}

// Clone returns a deep copy so callers can never alter cached state.
func (r Report) Clone() Report {
	r.Filtered = LocationSeries{location: r.Filtered.location, records: slices.Clone(r.Filtered.records)}
	r.Comparison = r.Comparison.Clone()
	r.Proportion = r.Proportion.Clone()
	return r
}
