package http

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"occupancy/internal/core"
)

// maxTableRows caps the rendered record table; totals always cover every row.
const maxTableRows = 1000

type locationOption struct {
	Value    string
	Name     string
	Selected bool
}

type barView struct {
	Category    string
	Count       int64
	CountText   string
	PercentText string
	Width       string // CSS width of the bar
}

type rowView struct {
	Date     string
	Category string
	Count    string
}

type reportView struct {
	Location     string
	LocationName string
	Start        string
	End          string
	Comparison   []barView
	Proportion   []barView
	Rows         []rowView
	RowCount     string
	Truncated    bool
	GrandTotal   string
	Empty        bool
}

type indexView struct {
	Locations []locationOption
	Location  string
	Min       string
	Max       string
	Error     string
}

func locationOptions(selected core.Location) []locationOption {
	locs := core.Locations()
	out := make([]locationOption, 0, len(locs))
	for _, l := range locs {
		out = append(out, locationOption{Value: l.String(), Name: l.DisplayName(), Selected: l == selected})
	}
	return out
}

// newReportView prepares a report for the templates. The comparison chart is
// zero-filled so both categories always get a bar.
func newReportView(r core.Report) reportView {
	v := reportView{
		Location:     r.Location.String(),
		LocationName: r.Location.DisplayName(),
		Start:        r.Range.Start.String(),
		End:          r.Range.End.String(),
		GrandTotal:   humanize.Comma(r.GrandTotal),
		Empty:        r.Filtered.Len() == 0,
		RowCount:     humanize.Comma(int64(r.Filtered.Len())),
	}

	comparison := core.ZeroFilled(r.Comparison, core.ComparisonCategories())
	var peak int64
	for _, c := range comparison {
		peak = max(peak, c)
	}
	for _, cat := range core.ComparisonCategories() {
		n := comparison[cat]
		v.Comparison = append(v.Comparison, barView{
			Category:    cat,
			Count:       n,
			CountText:   humanize.Comma(n),
			PercentText: percent(comparison.Share(cat)),
			Width:       width(n, peak),
		})
	}

	for _, c := range r.Proportion.Sorted() {
		share := r.Proportion.Share(c.Category)
		v.Proportion = append(v.Proportion, barView{
			Category:    c.Category,
			Count:       c.Count,
			CountText:   humanize.Comma(c.Count),
			PercentText: percent(share),
			Width:       fmt.Sprintf("%.1f%%", share*100),
		})
	}

	for i, rec := range r.Filtered.Records() {
		if i == maxTableRows {
			v.Truncated = true
			break
		}
		v.Rows = append(v.Rows, rowView{
			Date:     rec.Date.String(),
			Category: rec.Category,
			Count:    humanize.Comma(rec.Count),
		})
	}
	return v
}

func percent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func width(n, peak int64) string {
	if peak == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(peak)*100)
}

// JSON shapes of the report API.
type (
	categoryShareResponse struct {
		Category string  `json:"category"`
		Count    int64   `json:"count"`
		Share    float64 `json:"share"`
	}

	recordResponse struct {
		Date     string `json:"date"`
		Category string `json:"category"`
		Count    int64  `json:"count"`
	}

	reportResponse struct {
		Location         string                  `json:"location"`
		LocationName     string                  `json:"location_name"`
		Start            string                  `json:"start"`
		End              string                  `json:"end"`
		Comparison       map[string]int64        `json:"comparison"`
		ComparisonFilled map[string]int64        `json:"comparison_filled"`
		Proportion       []categoryShareResponse `json:"proportion"`
		Rows             []recordResponse        `json:"rows"`
		GrandTotal       int64                   `json:"grand_total"`
	}

	boundsResponse struct {
		Location string `json:"location"`
		Min      string `json:"min"`
		Max      string `json:"max"`
	}
)

func newReportResponse(r core.Report) reportResponse {
	resp := reportResponse{
		Location:         r.Location.String(),
		LocationName:     r.Location.DisplayName(),
		Start:            r.Range.Start.String(),
		End:              r.Range.End.String(),
		Comparison:       r.Comparison.Clone(),
		ComparisonFilled: core.ZeroFilled(r.Comparison, core.ComparisonCategories()),
		Proportion:       make([]categoryShareResponse, 0, len(r.Proportion)),
		Rows:             make([]recordResponse, 0, r.Filtered.Len()),
		GrandTotal:       r.GrandTotal,
	}
	for _, c := range r.Proportion.Sorted() {
		resp.Proportion = append(resp.Proportion, categoryShareResponse{
			Category: c.Category,
			Count:    c.Count,
			Share:    r.Proportion.Share(c.Category),
		})
	}
	for _, rec := range r.Filtered.Records() {
		resp.Rows = append(resp.Rows, recordResponse{Date: rec.Date.String(), Category: rec.Category, Count: rec.Count})
	}
	return resp
}
