package amqp

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"occupancy/internal/core"
)

// ReportGeneratedMessage announces that a report was assembled.
type ReportGeneratedMessage struct {
	ID         string           `json:"id"`
	Location   string           `json:"location"`
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Records    int              `json:"records"`
	GrandTotal int64            `json:"grand_total"`
	Totals     map[string]int64 `json:"totals"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewReportGeneratedMessage builds the event for r with a fresh ID.
func NewReportGeneratedMessage(r core.Report) *ReportGeneratedMessage {
	return &ReportGeneratedMessage{
		ID:         uuid.NewString(),
		Location:   r.Location.String(),
		Start:      r.Range.Start.String(),
		End:        r.Range.End.String(),
		Records:    r.Filtered.Len(),
		GrandTotal: r.GrandTotal,
		Totals:     r.Proportion.Clone(),
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ReportGeneratedMessage) Validate() error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return fmt.Errorf("invalid id %q: %w", m.ID, err)
	}
	if _, err := core.ParseLocation(m.Location); err != nil {
		return err
	}
	if m.GrandTotal < 0 {
		return errors.New("negative grand total")
	}
	return nil
}

func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportGeneratedMessageFromJSON decodes and validates a message body.
func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
