package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"occupancy/internal/core"
	"occupancy/internal/log"
	"occupancy/internal/source"
)

// SeriesWriter stores a location's full series, replacing what was there.
type SeriesWriter interface {
	ReplaceSeries(ctx context.Context, series core.LocationSeries) error
}

// ImportProcessorConfig holds configuration for the import processor
type ImportProcessorConfig struct {
	// Interval between imports when running as a loop (default: 1h)
	Interval time.Duration

	// Timeout bounds a single import of one location (default: 1m)
	Timeout time.Duration
}

// DefaultImportProcessorConfig returns sensible defaults
func DefaultImportProcessorConfig() ImportProcessorConfig {
	return ImportProcessorConfig{
		Interval: time.Hour,
		Timeout:  time.Minute,
	}
}

// ImportResult is the outcome of importing one location.
type ImportResult struct {
	Location core.Location
	Records  int
	Err      error
}

// ImportProcessor copies detection series from a source into storage. A
// location whose source fails keeps its previously stored records.
type ImportProcessor struct {
	source source.SeriesLoader
	store  SeriesWriter
	config ImportProcessorConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewImportProcessor creates a new import processor
func NewImportProcessor(src source.SeriesLoader, store SeriesWriter, config ImportProcessorConfig, logger *log.Logger) *ImportProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ImportProcessor{
		source: src,
		store:  store,
		config: config,
		logger: logger.WithComponent(log.ComponentImport),
	}
}

// RunOnce imports every location in turn. The returned error joins the
// failures; the results always cover every location.
func (p *ImportProcessor) RunOnce(ctx context.Context) ([]ImportResult, error) {
	var (
		results []ImportResult
		errs    []error
	)
	for _, loc := range core.Locations() {
		n, err := p.importLocation(ctx, loc)
		results = append(results, ImportResult{Location: loc, Records: n, Err: err})
		if err != nil {
			p.logger.ErrorContext(ctx, "Import failed", log.FieldLocation, loc.String(),
				log.FieldOperation, log.OpImport, log.FieldError, err)
			errs = append(errs, err)
			continue
		}
		p.logger.InfoContext(ctx, "Import completed", log.FieldLocation, loc.String(), log.FieldRecords, n)
	}
	return results, errors.Join(errs...)
}

func (p *ImportProcessor) importLocation(ctx context.Context, loc core.Location) (int, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	series, err := p.source.Load(ctx, loc)
	if err != nil {
		return 0, err
	}
	if err := p.store.ReplaceSeries(ctx, series); err != nil {
		return 0, fmt.Errorf("store %s series: %w", loc, err)
	}
	return series.Len(), nil
}

// Start begins the import loop. Returns an error if already running.
func (p *ImportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("import processor is already running")
	}
	if p.config.Interval <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("import interval must be positive, got %v", p.config.Interval)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Import processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ImportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Import processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Import processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ImportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ImportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Import immediately on startup
	_, _ = p.RunOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.RunOnce(ctx)
		}
	}
}
