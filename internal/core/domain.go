package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Faculty Location = "faculty"
	Library Location = "library"
)

// Categories used by the lecturer/student comparison view.
const (
	CategoryLecturer = "Dosen"
	CategoryStudent  = "Mahasiswa"
)

const dateLayout = "2006-01-02"

type (
	Location string

	// Date is a calendar day. The wrapped time is always midnight UTC.
	Date struct {
		time.Time
	}

	DetectionRecord struct {
		Date     Date
		Category string
		Count    int64 // people detected
	}
)

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrEmptySeries     = errors.New("series has no records")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrUnknownLocation = errors.New("unknown location")

	ErrZeroDate      = errors.New("date cannot be zero")
	ErrEmptyCategory = errors.New("empty category")
	ErrNegativeCount = errors.New("count cannot be negative")
)

// LoadError reports why a location's series could not be loaded.
// It matches ErrDataUnavailable with errors.Is and unwraps to the cause.
type LoadError struct {
	Location Location
	Source   string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s data unavailable: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("%s data unavailable (%s): %v", e.Location, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrDataUnavailable }

// Locations returns every known location in display order.
func Locations() []Location {
	return []Location{Faculty, Library}
}

// ParseLocation accepts the location identifier case-insensitively.
func ParseLocation(s string) (Location, error) {
	switch Location(strings.ToLower(strings.TrimSpace(s))) {
	case Faculty:
		return Faculty, nil
	case Library:
		return Library, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLocation, s)
	}
}

func (l Location) String() string {
	return string(l)
}

// DisplayName returns the human readable name shown on the dashboard.
func (l Location) DisplayName() string {
	switch l {
	case Faculty:
		return "Fakultas Ilmu Terapan"
	case Library:
		return "Open Library"
	default:
		return string(l)
	}
}

// ComparisonCategories returns the fixed allow-list of the comparison view.
func ComparisonCategories() []string {
	return []string{CategoryLecturer, CategoryStudent}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's own wall clock date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (r DetectionRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if r.Count < 0 {
		return ErrNegativeCount
	}
	return nil
}
