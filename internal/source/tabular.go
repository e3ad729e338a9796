// Package source holds the ports and shared parsing for detection series adapters.
//
// Every adapter (CSV file, Google Sheets, SQLite import) turns its raw rows into
// string cells and hands them to ParseRows, so all sources accept the same header
// names, date layouts and count formats and reject malformed rows the same way.
package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"occupancy/internal/core"
)

// Column headers of the detection export.
const (
	ColumnDate     = "Tanggal"
	ColumnCategory = "Kategori"
	ColumnCount    = "Jumlah Orang"
)

// dateLayouts are tried in order; time of day is dropped after parsing.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
}

var (
	ErrMissingHeader = errors.New("missing header row")
	ErrMissingColumn = errors.New("missing required column")
)

// ParseRows converts a header row followed by data rows into a validated series.
// Blank rows are skipped. The first malformed row aborts parsing with an error
// naming its 1-based line number.
func ParseRows(loc core.Location, rows [][]string) (core.LocationSeries, error) {
	if len(rows) == 0 {
		return core.LocationSeries{}, ErrMissingHeader
	}
	cols, err := headerIndex(rows[0])
	if err != nil {
		return core.LocationSeries{}, err
	}

	records := make([]core.DetectionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		r, err := parseRow(row, cols)
		if err != nil {
			return core.LocationSeries{}, fmt.Errorf("line %d: %w", i+2, err)
		}
		records = append(records, r)
	}
	return core.NewLocationSeries(loc, records)
}

type columns struct {
	date, category, count int
}

func headerIndex(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var cols columns
	var missing []string
	lookup := func(name string, dst *int) {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			return
		}
		*dst = i
	}
	lookup(ColumnDate, &cols.date)
	lookup(ColumnCategory, &cols.category)
	lookup(ColumnCount, &cols.count)
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: %s; got headers=%v", ErrMissingColumn, strings.Join(missing, ","), header)
	}
	return cols, nil
}

func parseRow(row []string, cols columns) (core.DetectionRecord, error) {
	date, err := ParseDate(safeGet(row, cols.date))
	if err != nil {
		return core.DetectionRecord{}, err
	}
	count, err := ParseCount(safeGet(row, cols.count))
	if err != nil {
		return core.DetectionRecord{}, err
	}
	r := core.DetectionRecord{
		Date:     date,
		Category: strings.TrimSpace(safeGet(row, cols.category)),
		Count:    count,
	}
	if err := r.Validate(); err != nil {
		return core.DetectionRecord{}, err
	}
	return r, nil
}

// ParseDate accepts the date layouts produced by the detection exports and
// truncates the result to its calendar day.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("invalid date %q", s)
}

// ParseCount parses a non-negative people count. Spreadsheet exports sometimes
// write integers as "12.0", which is accepted; any real fraction is not.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid count %q: %w", s, core.ErrNegativeCount)
	}
	return n, nil
}

// ToStrings converts a row of loosely typed cells (as returned by the Sheets
// API) into trimmed strings.
func ToStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
