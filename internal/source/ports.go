package source

import (
	"context"

	"occupancy/internal/core"
)

// Ports for inbound series adapters.
type (
	// SeriesLoader reads the full detection series of one location.
	// Failures are reported as *core.LoadError so callers can match
	// core.ErrDataUnavailable.
	SeriesLoader interface {
		Load(ctx context.Context, loc core.Location) (core.LocationSeries, error)
	}

	// Describer is implemented by loaders that can name the source of a
	// location's data (a file path, a sheet range, a database file).
	Describer interface {
		Describe(loc core.Location) string
	}
)
