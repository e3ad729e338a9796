package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"occupancy/internal/amqp"
	"occupancy/internal/core"
	"occupancy/internal/log"
	"occupancy/internal/metrics"
	"occupancy/internal/source/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ReportGeneratedMessage
	err  error
}

func (f *fakePublisher) PublishReportGenerated(_ context.Context, msg *amqp.ReportGeneratedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(log.Config{Handler: slog.NewTextHandler(&buf, nil), Component: log.ComponentApp}), &buf
}

func day(d int) core.Date { return core.NewDate(2024, 1, d) }

func facultySeries(t *testing.T) core.LocationSeries {
	t.Helper()
	s, err := core.NewLocationSeries(core.Faculty, []core.DetectionRecord{
		{Date: day(1), Category: "Mahasiswa", Count: 5},
		{Date: day(1), Category: "Dosen", Count: 2},
		{Date: day(2), Category: "Mahasiswa", Count: 3},
		{Date: day(3), Category: "Tas", Count: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newLoadedService(t *testing.T, store *memory.Store, pub EventPublisher) *ReportService {
	t.Helper()
	logger, _ := testLogger()
	svc := NewReportService(store, pub, DefaultReportServiceConfig(), logger)
	_ = svc.LoadAll(context.Background())
	return svc
}

func TestAssembleExample(t *testing.T) {
	store := memory.New(facultySeries(t))
	pub := &fakePublisher{}
	svc := newLoadedService(t, store, pub)

	r, err := svc.Assemble(context.Background(), core.Faculty, core.DateRange{Start: day(1), End: day(1)})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if r.GrandTotal != 7 || r.Filtered.Len() != 2 {
		t.Fatalf("unexpected report: total=%d records=%d", r.GrandTotal, r.Filtered.Len())
	}
	if !maps.Equal(r.Comparison, core.CategoryTotals{"Mahasiswa": 5, "Dosen": 2}) {
		t.Fatalf("unexpected comparison %v", r.Comparison)
	}
	if r.Proportion.Sum() != r.GrandTotal {
		t.Fatalf("proportion sum %d differs from total %d", r.Proportion.Sum(), r.GrandTotal)
	}
	if pub.count() != 1 || pub.msgs[0].GrandTotal != 7 {
		t.Fatalf("expected one published event with total 7, got %d", pub.count())
	}
}

func TestAssembleComparisonOmitsAbsentCategories(t *testing.T) {
	svc := newLoadedService(t, memory.New(facultySeries(t)), nil)
	r, err := svc.Assemble(context.Background(), core.Faculty, core.DateRange{Start: day(2), End: day(3)})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if _, ok := r.Comparison["Dosen"]; ok {
		t.Fatalf("Dosen has no records in range and must be absent: %v", r.Comparison)
	}
	if r.Proportion["Tas"] != 4 {
		t.Fatalf("proportion must include every category: %v", r.Proportion)
	}
}

func TestAssembleReturnsLoadFailureUnchanged(t *testing.T) {
	store := memory.New(facultySeries(t))
	cause := errors.New("disk on fire")
	store.Fail(core.Library, cause)
	svc := newLoadedService(t, store, nil)

	_, err := svc.Assemble(context.Background(), core.Library, core.DateRange{Start: day(1), End: day(1)})
	if !errors.Is(err, core.ErrDataUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected the library load failure, got %v", err)
	}
	var le *core.LoadError
	if !errors.As(err, &le) || le.Location != core.Library {
		t.Fatalf("expected LoadError for library, got %v", err)
	}

	if _, err := svc.Assemble(context.Background(), core.Faculty, core.DateRange{Start: day(1), End: day(3)}); err != nil {
		t.Fatalf("faculty must stay usable when library fails: %v", err)
	}
	if !svc.Ready() {
		t.Fatal("service should be ready with one healthy location")
	}
	st := svc.Status()
	if st[core.Faculty] != nil || st[core.Library] == nil {
		t.Fatalf("unexpected status %v", st)
	}
}

func TestAssembleErrors(t *testing.T) {
	empty, _ := core.NewLocationSeries(core.Library, nil)
	svc := newLoadedService(t, memory.New(facultySeries(t), empty), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		loc  core.Location
		rng  core.DateRange
		want error
	}{
		{"unknown location", "canteen", core.DateRange{Start: day(1), End: day(1)}, core.ErrUnknownLocation},
		{"empty series", core.Library, core.DateRange{Start: day(1), End: day(1)}, core.ErrEmptySeries},
		{"inverted range", core.Faculty, core.DateRange{Start: day(3), End: day(1)}, core.ErrInvalidRange},
		{"zero range", core.Faculty, core.DateRange{}, core.ErrInvalidRange},
		{"outside bounds", core.Faculty, core.DateRange{Start: day(1), End: day(9)}, core.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Assemble(ctx, tt.loc, tt.rng)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAssembleUsesCacheAndReturnsCopies(t *testing.T) {
	store := memory.New(facultySeries(t))
	pub := &fakePublisher{}
	svc := newLoadedService(t, store, pub)
	ctx := context.Background()
	rng := core.DateRange{Start: day(1), End: day(3)}

	before := testutil.ToFloat64(metrics.ReportCacheHitsTotal)
	first, err := svc.Assemble(ctx, core.Faculty, rng)
	if err != nil {
		t.Fatal(err)
	}
	first.Proportion["Mahasiswa"] = 1000

	second, err := svc.Assemble(ctx, core.Faculty, rng)
	if err != nil {
		t.Fatal(err)
	}
	if second.Proportion["Mahasiswa"] != 8 {
		t.Fatalf("cached report was mutated through a caller: %v", second.Proportion)
	}
	if testutil.ToFloat64(metrics.ReportCacheHitsTotal)-before != 1 {
		t.Fatal("second request should hit the cache")
	}
	if store.Loads(core.Faculty) != 1 {
		t.Fatalf("series must be loaded once, got %d loads", store.Loads(core.Faculty))
	}
	if pub.count() != 1 {
		t.Fatalf("cache hits must not publish again, got %d events", pub.count())
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newLoadedService(t, memory.New(facultySeries(t)), pub)
	if _, err := svc.Assemble(context.Background(), core.Faculty, core.DateRange{Start: day(1), End: day(2)}); err != nil {
		t.Fatalf("publish failure leaked into the request: %v", err)
	}
}

func TestAssembleBeforeLoad(t *testing.T) {
	logger, _ := testLogger()
	svc := NewReportService(memory.New(facultySeries(t)), nil, DefaultReportServiceConfig(), logger)
	if svc.Ready() {
		t.Fatal("service must not be ready before loading")
	}
	_, err := svc.Assemble(context.Background(), core.Faculty, core.DateRange{Start: day(1), End: day(1)})
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable before load, got %v", err)
	}
}

func TestLoadAllJoinsErrors(t *testing.T) {
	store := memory.New()
	logger, buf := testLogger()
	svc := NewReportService(store, nil, ReportServiceConfig{CacheSize: 4, CacheTTL: time.Minute, LoadTimeout: time.Second}, logger)

	err := svc.LoadAll(context.Background())
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected joined unavailable errors, got %v", err)
	}
	if svc.Ready() {
		t.Fatal("no location loaded, service must not be ready")
	}
	if !bytes.Contains(buf.Bytes(), []byte("Series load failed")) {
		t.Fatalf("load failures should be logged: %s", buf.String())
	}
}

func TestBounds(t *testing.T) {
	svc := newLoadedService(t, memory.New(facultySeries(t)), nil)
	b, err := svc.Bounds("FACULTY")
	if err != nil || b.Start != day(1) || b.End != day(3) {
		t.Fatalf("unexpected bounds %s err=%v", b, err)
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{core.ErrUnknownLocation, "unknown_location"},
		{&core.LoadError{Err: errors.New("x")}, "unavailable"},
		{core.ErrEmptySeries, "empty_series"},
		{core.ErrInvalidRange, "invalid_range"},
		{errors.New("something else went wrong"), "internal"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
