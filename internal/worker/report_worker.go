// Package worker consumes report.generated events.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"occupancy/internal/amqp"
	"occupancy/internal/core"
)

// LocationStats summarises the reports seen for one location.
type LocationStats struct {
	Reports        int
	LastGrandTotal int64
	LastRange      string
	LastSeen       time.Time
}

// ReportWorker keeps running statistics of generated reports.
type ReportWorker struct {
	logger *slog.Logger

	mu    sync.Mutex
	stats map[core.Location]LocationStats
	seen  map[string]struct{}
}

func NewReportWorker(logger *slog.Logger) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{
		logger: logger,
		stats:  make(map[core.Location]LocationStats),
		seen:   make(map[string]struct{}),
	}
}

// HandleReportGenerated records one event. Redelivered events (same ID) are
// acknowledged without being counted twice.
func (w *ReportWorker) HandleReportGenerated(ctx context.Context, msg *amqp.ReportGeneratedMessage) error {
	loc, err := core.ParseLocation(msg.Location)
	if err != nil {
		return fmt.Errorf("report event %s: %w", msg.ID, err)
	}

	w.mu.Lock()
	if _, dup := w.seen[msg.ID]; dup {
		w.mu.Unlock()
		w.logger.DebugContext(ctx, "Duplicate report event ignored", "component", "worker", "event_id", msg.ID)
		return nil
	}
	w.seen[msg.ID] = struct{}{}
	st := w.stats[loc]
	st.Reports++
	st.LastGrandTotal = msg.GrandTotal
	st.LastRange = msg.Start + ".." + msg.End
	st.LastSeen = msg.Timestamp
	w.stats[loc] = st
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Report generated",
		"component", "worker",
		"event_id", msg.ID,
		"location", loc.String(),
		"range_start", msg.Start,
		"range_end", msg.End,
		"records", msg.Records,
		"grand_total", msg.GrandTotal,
		"reports_seen", st.Reports)
	return nil
}

// Stats returns a snapshot of the per-location statistics.
func (w *ReportWorker) Stats() map[core.Location]LocationStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[core.Location]LocationStats, len(w.stats))
	for k, v := range w.stats {
		out[k] = v
	}
	return out
}
