// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of the report query string.
// Validation runs through go-playground/validator; the resolved window is
// defaulted and clamped to the bounds of the selected series.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"occupancy/internal/core"
)

const dateLayout = "2006-01-02"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ReportQuery holds the raw report parameters of a request.
type ReportQuery struct {
	Location string `validate:"required,oneof=faculty library"`
	Start    string `validate:"omitempty,datetime=2006-01-02"`
	End      string `validate:"omitempty,datetime=2006-01-02"`
}

// LocationQuery holds the parameters of the bounds endpoint.
type LocationQuery struct {
	Location string `validate:"required,oneof=faculty library"`
}

// ParseReportQuery reads location, start and end from the query string.
// A bad location yields core.ErrUnknownLocation and a malformed date yields
// core.ErrInvalidRange, both wrapped with a readable message.
func ParseReportQuery(query url.Values) (ReportQuery, error) {
	q := ReportQuery{
		Location: strings.ToLower(sanitizeInput(query.Get("location"))),
		Start:    sanitizeInput(query.Get("start")),
		End:      sanitizeInput(query.Get("end")),
	}
	if err := getValidator().Struct(&q); err != nil {
		return ReportQuery{}, translateValidation(err)
	}
	return q, nil
}

// ParseLocationQuery reads and validates the location parameter alone.
func ParseLocationQuery(query url.Values) (core.Location, error) {
	q := LocationQuery{Location: strings.ToLower(sanitizeInput(query.Get("location")))}
	if err := getValidator().Struct(&q); err != nil {
		return "", translateValidation(err)
	}
	return core.ParseLocation(q.Location)
}

// Resolve turns the validated query into a window inside bounds. Missing ends
// default to the matching bound and ends outside bounds are clamped. A start
// after the end is rejected before clamping.
func (q ReportQuery) Resolve(bounds core.DateRange) (core.Location, core.DateRange, error) {
	loc, err := core.ParseLocation(q.Location)
	if err != nil {
		return "", core.DateRange{}, err
	}

	rng := bounds
	if q.Start != "" {
		if rng.Start, err = core.ParseDate(q.Start); err != nil {
			return "", core.DateRange{}, fmt.Errorf("%w: start: %v", core.ErrInvalidRange, err)
		}
	}
	if q.End != "" {
		if rng.End, err = core.ParseDate(q.End); err != nil {
			return "", core.DateRange{}, fmt.Errorf("%w: end: %v", core.ErrInvalidRange, err)
		}
	}
	if q.Start != "" && q.End != "" && rng.Start.Compare(rng.End) > 0 {
		return "", core.DateRange{}, fmt.Errorf("%w: start %s is after end %s", core.ErrInvalidRange, rng.Start, rng.End)
	}
	rng = rng.Clamp(bounds)
	if err := rng.Validate(); err != nil {
		return "", core.DateRange{}, err
	}
	return loc, rng, nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", core.ErrInvalidRange, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Location":
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: location is required", core.ErrUnknownLocation)
		}
		return fmt.Errorf("%w: %q", core.ErrUnknownLocation, fe.Value())
	default:
		return fmt.Errorf("%w: %s must be a date in YYYY-MM-DD form, got %q",
			core.ErrInvalidRange, strings.ToLower(fe.Field()), fe.Value())
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
