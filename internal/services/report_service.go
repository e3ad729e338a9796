package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"occupancy/internal/amqp"
	"occupancy/internal/cache"
	"occupancy/internal/core"
	"occupancy/internal/log"
	"occupancy/internal/metrics"
	"occupancy/internal/source"
)

var errNotLoaded = errors.New("series not loaded yet")

// EventPublisher receives a message for every freshly assembled report.
type EventPublisher interface {
	PublishReportGenerated(ctx context.Context, msg *amqp.ReportGeneratedMessage) error
}

type ReportServiceConfig struct {
	CacheSize   int
	CacheTTL    time.Duration
	LoadTimeout time.Duration
}

func DefaultReportServiceConfig() ReportServiceConfig {
	return ReportServiceConfig{
		CacheSize:   256,
		CacheTTL:    10 * time.Minute,
		LoadTimeout: 30 * time.Second,
	}
}

type seriesState struct {
	series   core.LocationSeries
	err      error
	loadedAt time.Time
}

// ReportService loads both location series once and assembles reports from them.
type ReportService struct {
	loader     source.SeriesLoader
	publisher  EventPublisher
	cache      *cache.LRUCache[core.Report]
	config     ReportServiceConfig
	logger     *log.Logger
	structured *log.StructuredLogger

	mu     sync.RWMutex
	states map[core.Location]seriesState
}

// NewReportService wires the service. publisher may be nil, in which case no
// events are sent.
func NewReportService(loader source.SeriesLoader, publisher EventPublisher, config ReportServiceConfig, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentReport)
	return &ReportService{
		loader:     loader,
		publisher:  publisher,
		cache:      cache.NewLRUCache[core.Report](config.CacheSize, config.CacheTTL),
		config:     config,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		states:     make(map[core.Location]seriesState),
	}
}

// Cache exposes the report cache so it can be registered for periodic cleanup.
func (s *ReportService) Cache() cache.Cleaner {
	return s.cache
}

// LoadAll loads every location concurrently. Each outcome is kept on its own:
// a failing location is remembered with its error while the others stay
// usable. The returned error joins all load failures.
func (s *ReportService) LoadAll(ctx context.Context) error {
	if s.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.LoadTimeout)
		defer cancel()
	}

	locs := core.Locations()
	results := make([]seriesState, len(locs))

	var g errgroup.Group
	for i, loc := range locs {
		g.Go(func() error {
			start := time.Now()
			series, err := s.loader.Load(ctx, loc)
			if err != nil && !errors.Is(err, core.ErrDataUnavailable) {
				err = &core.LoadError{Location: loc, Err: err}
			}
			results[i] = seriesState{series: series, err: err, loadedAt: time.Now()}
			metrics.RecordSeriesLoad(loc.String(), time.Since(start), series.Len(), err)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for i, loc := range locs {
		s.states[loc] = results[i]
	}
	s.mu.Unlock()
	s.cache.Purge()

	var errs []error
	for i, loc := range locs {
		if err := results[i].err; err != nil {
			s.structured.LogError(ctx, "Series load failed", err, log.ComponentSource, log.OpLoad,
				log.NewFields().WithErrorType(log.ErrorTypeUnavailable))
			errs = append(errs, err)
			continue
		}
		s.logger.InfoContext(ctx, "Series loaded", log.FieldLocation, loc.String(), log.FieldRecords, results[i].series.Len())
	}
	return errors.Join(errs...)
}

// Ready reports whether at least one location loaded successfully.
func (s *ReportService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		if st.err == nil {
			return true
		}
	}
	return false
}

// Status returns the load error of every location, nil for the healthy ones.
func (s *ReportService) Status() map[core.Location]error {
	out := make(map[core.Location]error, len(core.Locations()))
	for _, loc := range core.Locations() {
		_, err := s.series(loc)
		out[loc] = err
	}
	return out
}

func (s *ReportService) series(loc core.Location) (core.LocationSeries, error) {
	s.mu.RLock()
	st, ok := s.states[loc]
	s.mu.RUnlock()
	if !ok {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Err: errNotLoaded}
	}
	return st.series, st.err
}

// Bounds returns the date bounds of the location's series.
func (s *ReportService) Bounds(loc core.Location) (core.DateRange, error) {
	loc, err := core.ParseLocation(string(loc))
	if err != nil {
		return core.DateRange{}, err
	}
	series, err := s.series(loc)
	if err != nil {
		return core.DateRange{}, err
	}
	return series.Bounds()
}

// Assemble builds the report for loc over rng. A failed load is returned
// unchanged; rng must be valid and lie inside the series bounds.
func (s *ReportService) Assemble(ctx context.Context, loc core.Location, rng core.DateRange) (core.Report, error) {
	loc, err := core.ParseLocation(string(loc))
	if err != nil {
		metrics.ReportErrorsTotal.WithLabelValues("unknown", ErrorKind(err)).Inc()
		return core.Report{}, err
	}
	report, hit, err := s.assemble(loc, rng)
	if err != nil {
		metrics.ReportErrorsTotal.WithLabelValues(loc.String(), ErrorKind(err)).Inc()
		return core.Report{}, err
	}
	metrics.ReportsAssembledTotal.WithLabelValues(loc.String()).Inc()
	s.structured.LogReportAssembled(ctx, loc.String(), rng.Start.String(), rng.End.String(),
		report.Filtered.Len(), report.GrandTotal, hit)

	if !hit {
		s.publish(ctx, report)
	}
	return report, nil
}

func (s *ReportService) assemble(loc core.Location, rng core.DateRange) (core.Report, bool, error) {
	bounds, err := s.Bounds(loc)
	if err != nil {
		return core.Report{}, false, err
	}
	if err := rng.Validate(); err != nil {
		return core.Report{}, false, err
	}
	if !rng.Within(bounds) {
		return core.Report{}, false, fmt.Errorf("%w: %s is outside %s", core.ErrInvalidRange, rng, bounds)
	}

	key := cacheKey(loc, rng)
	if cached, ok := s.cache.Get(key); ok {
		metrics.RecordCache(true)
		return cached.Clone(), true, nil
	}
	metrics.RecordCache(false)

	series, err := s.series(loc)
	if err != nil {
		return core.Report{}, false, err
	}
	filtered := core.Filter(series, rng)
	report := core.Report{
		Location:   loc,
		Range:      rng,
		Filtered:   filtered,
		Comparison: core.AggregateSubset(filtered, core.ComparisonCategories()),
		Proportion: core.AggregateAll(filtered),
		GrandTotal: core.TotalOf(filtered),
	}
	s.cache.Set(key, report.Clone())
	return report, false, nil
}

func (s *ReportService) publish(ctx context.Context, report core.Report) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewReportGeneratedMessage(report)
	if err := s.publisher.PublishReportGenerated(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish report event",
			log.FieldEventID, msg.ID, log.FieldLocation, msg.Location, log.FieldError, err)
	}
}

func cacheKey(loc core.Location, rng core.DateRange) string {
	return loc.String() + "|" + rng.String()
}

// ErrorKind classifies report errors for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownLocation):
		return "unknown_location"
	case errors.Is(err, core.ErrDataUnavailable):
		return "unavailable"
	case errors.Is(err, core.ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, core.ErrInvalidRange):
		return "invalid_range"
	default:
		return "internal"
	}
}
