package memory

import (
	"context"
	"errors"
	"testing"

	"occupancy/internal/core"
)

func TestStore(t *testing.T) {
	fac, err := core.NewLocationSeries(core.Faculty, []core.DetectionRecord{
		{Date: core.NewDate(2024, 1, 1), Category: "Dosen", Count: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := New(fac)
	ctx := context.Background()

	got, err := s.Load(ctx, core.Faculty)
	if err != nil || got.Len() != 1 {
		t.Fatalf("load: %d records err=%v", got.Len(), err)
	}
	if _, err := s.Load(ctx, core.Library); !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("unseeded location should be unavailable, got %v", err)
	}

	boom := errors.New("boom")
	s.Fail(core.Faculty, boom)
	if _, err := s.Load(ctx, core.Faculty); !errors.Is(err, boom) || !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	s.Put(fac)
	if _, err := s.Load(ctx, core.Faculty); err != nil {
		t.Fatalf("Put should clear the failure: %v", err)
	}
	if s.Loads(core.Faculty) != 3 {
		t.Fatalf("expected 3 loads, got %d", s.Loads(core.Faculty))
	}
}
