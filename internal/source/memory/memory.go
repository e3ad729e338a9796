// Package memory is an in-process series store used for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"occupancy/internal/core"
	"occupancy/internal/source"
)

var errNotSeeded = errors.New("no series stored")

type Store struct {
	mu     sync.RWMutex
	series map[core.Location]core.LocationSeries
	errs   map[core.Location]error
	loads  map[core.Location]int
}

var _ source.SeriesLoader = (*Store)(nil)

func New(series ...core.LocationSeries) *Store {
	s := &Store{
		series: make(map[core.Location]core.LocationSeries),
		errs:   make(map[core.Location]error),
		loads:  make(map[core.Location]int),
	}
	for _, x := range series {
		s.series[x.Location()] = x
	}
	return s
}

// Put replaces the series stored for its location and clears any failure.
func (s *Store) Put(series core.LocationSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series.Location()] = series
	delete(s.errs, series.Location())
}

// Fail makes subsequent loads of loc return err wrapped in a LoadError.
func (s *Store) Fail(loc core.Location, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[loc] = err
}

func (s *Store) Load(ctx context.Context, loc core.Location) (core.LocationSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[loc]++
	if err := ctx.Err(); err != nil {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: "memory", Err: err}
	}
	if err, ok := s.errs[loc]; ok {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: "memory", Err: err}
	}
	series, ok := s.series[loc]
	if !ok {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: "memory", Err: errNotSeeded}
	}
	return series, nil
}

// Loads reports how many times loc was requested.
func (s *Store) Loads(loc core.Location) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads[loc]
}
