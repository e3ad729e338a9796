package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"occupancy/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"closed sentinel", amqp091.ErrClosed, true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other error", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func testReport(t *testing.T) core.Report {
	t.Helper()
	s, err := core.NewLocationSeries(core.Library, []core.DetectionRecord{
		{Date: core.NewDate(2024, 1, 1), Category: "Mahasiswa", Count: 5},
		{Date: core.NewDate(2024, 1, 1), Category: "Dosen", Count: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	day := core.NewDate(2024, 1, 1)
	return core.Report{
		Location:   core.Library,
		Range:      core.DateRange{Start: day, End: day},
		Filtered:   s,
		Comparison: core.AggregateSubset(s, core.ComparisonCategories()),
		Proportion: core.AggregateAll(s),
		GrandTotal: core.TotalOf(s),
	}
}

func TestPublishOpensBreakerAfterFailures(t *testing.T) {
	c := newClient("amqp://localhost/", "occupancy", "report_generated")
	calls := 0
	c.publish = func(context.Context, amqp091.Publishing) error {
		calls++
		return errors.New("connection refused")
	}
	msg := NewReportGeneratedMessage(testReport(t))

	for i := 0; i < maxFailures; i++ {
		if err := c.PublishReportGenerated(context.Background(), msg); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}
	err := c.PublishReportGenerated(context.Background(), msg)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != maxFailures {
		t.Fatalf("open breaker must not call the broker, got %d calls", calls)
	}
}

func TestPublishSendsMessage(t *testing.T) {
	c := newClient("amqp://localhost/", "occupancy", "report_generated")
	var got amqp091.Publishing
	c.publish = func(_ context.Context, p amqp091.Publishing) error {
		got = p
		return nil
	}
	msg := NewReportGeneratedMessage(testReport(t))
	if err := c.PublishReportGenerated(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.MessageId != msg.ID || got.DeliveryMode != amqp091.Persistent || got.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", got)
	}
	decoded, err := ReportGeneratedMessageFromJSON(got.Body)
	if err != nil || decoded.GrandTotal != 7 {
		t.Fatalf("body did not decode: %+v err=%v", decoded, err)
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	c := newClient("amqp://localhost/", "occupancy", "report_generated")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.PublishReportGenerated(ctx, NewReportGeneratedMessage(testReport(t))); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeAcker struct {
	acked, nacked, requeued bool
}

func (f *fakeAcker) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}
func (f *fakeAcker) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	body, err := NewReportGeneratedMessage(testReport(t)).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	ok := func(context.Context, *ReportGeneratedMessage) error { return nil }
	fail := func(context.Context, *ReportGeneratedMessage) error { return errors.New("busy") }

	tests := []struct {
		name     string
		body     []byte
		handler  ReportHandler
		outcome  string
		acked    bool
		requeued bool
	}{
		{"processed", body, ok, "consumed", true, false},
		{"handler failure requeues", body, fail, "requeued", false, true},
		{"malformed is dropped", []byte(`{"id":"nope"}`), ok, "rejected", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcker{}
			got := handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body}, tt.handler)
			if got != tt.outcome || ack.acked != tt.acked || ack.requeued != tt.requeued {
				t.Fatalf("outcome=%s acked=%v requeued=%v", got, ack.acked, ack.requeued)
			}
		})
	}
}

func TestReportGeneratedMessage_JSON(t *testing.T) {
	msg := NewReportGeneratedMessage(testReport(t))
	if msg.Start != "2024-01-01" || msg.Totals["Dosen"] != 2 || msg.Records != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := ReportGeneratedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip changed message: %+v", parsed)
	}

	if _, err := ReportGeneratedMessageFromJSON([]byte(`{"id": 5}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
