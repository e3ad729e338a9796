package core

import (
	"fmt"
	"slices"
)

// LocationSeries is the ordered, read-only set of detection records of one location.
type LocationSeries struct {
	location Location
	records  []DetectionRecord
}

// DateRange is an inclusive [Start, End] window of days.
type DateRange struct {
	Start Date
	End   Date
}

// NewLocationSeries validates every record and takes a private copy of them.
func NewLocationSeries(loc Location, records []DetectionRecord) (LocationSeries, error) {
	if _, err := ParseLocation(string(loc)); err != nil {
		return LocationSeries{}, err
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return LocationSeries{}, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return LocationSeries{location: loc, records: slices.Clone(records)}, nil
}

func (s LocationSeries) Location() Location {
	return s.location
}

func (s LocationSeries) Len() int {
	return len(s.records)
}

// Records returns a copy of the records in source order.
func (s LocationSeries) Records() []DetectionRecord {
	return slices.Clone(s.records)
}

// Bounds returns the earliest and latest dates present in the series.
func (s LocationSeries) Bounds() (DateRange, error) {
	if len(s.records) == 0 {
		return DateRange{}, fmt.Errorf("%s: %w", s.location, ErrEmptySeries)
	}
	lo, hi := s.records[0].Date, s.records[0].Date
	for _, r := range s.records[1:] {
		if r.Date.Compare(lo) < 0 {
			lo = r.Date
		}
		if r.Date.Compare(hi) > 0 {
			hi = r.Date
		}
	}
	return DateRange{Start: lo, End: hi}, nil
}

// NewDateRange rejects windows whose start is after their end.
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: missing start or end", ErrInvalidRange)
	}
	if r.Start.Compare(r.End) > 0 {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls inside the window, both ends included.
func (r DateRange) Contains(d Date) bool {
	return r.Start.Compare(d) <= 0 && d.Compare(r.End) <= 0
}

// Within reports whether r lies entirely inside outer.
func (r DateRange) Within(outer DateRange) bool {
	return outer.Contains(r.Start) && outer.Contains(r.End)
}

// Clamp pulls both ends of r into outer. The result may still be inverted
// when r was inverted to begin with.
func (r DateRange) Clamp(outer DateRange) DateRange {
	clamp := func(d Date) Date {
		if d.Compare(outer.Start) < 0 {
			return outer.Start
		}
		if d.Compare(outer.End) > 0 {
			return outer.End
		}
		return d
	}
	return DateRange{Start: clamp(r.Start), End: clamp(r.End)}
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Filter returns a new series holding the records whose date lies in r,
// preserving source order. An empty result is valid.
func Filter(s LocationSeries, r DateRange) LocationSeries {
	out := make([]DetectionRecord, 0, len(s.records))
	for _, rec := range s.records {
		if r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return LocationSeries{location: s.location, records: out}
}
