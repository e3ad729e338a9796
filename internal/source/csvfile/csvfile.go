// Package csvfile loads detection series from CSV exports on disk.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"occupancy/internal/core"
	"occupancy/internal/source"
)

// Loader reads one CSV file per location.
type Loader struct {
	paths map[core.Location]string
}

var (
	_ source.SeriesLoader = (*Loader)(nil)
	_ source.Describer    = (*Loader)(nil)
)

var errNoPath = errors.New("no file configured")

// New returns a loader reading the given files. Either path may be empty,
// in which case loading that location fails with core.ErrDataUnavailable.
func New(facultyPath, libraryPath string) *Loader {
	return &Loader{paths: map[core.Location]string{
		core.Faculty: facultyPath,
		core.Library: libraryPath,
	}}
}

func (l *Loader) Describe(loc core.Location) string {
	return l.paths[loc]
}

// Load reads and parses the whole file for loc. The file is re-read on every call.
func (l *Loader) Load(ctx context.Context, loc core.Location) (core.LocationSeries, error) {
	if _, err := core.ParseLocation(string(loc)); err != nil {
		return core.LocationSeries{}, err
	}
	path := l.paths[loc]
	fail := func(err error) (core.LocationSeries, error) {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: path, Err: err}
	}
	if path == "" {
		return fail(errNoPath)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	rows, err := readAll(path)
	if err != nil {
		return fail(err)
	}
	s, err := source.ParseRows(loc, rows)
	if err != nil {
		return fail(fmt.Errorf("parse %s: %w", path, err))
	}
	return s, nil
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}
