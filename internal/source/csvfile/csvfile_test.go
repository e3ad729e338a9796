package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"occupancy/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoad(t *testing.T) {
	fac := writeFile(t, "fit.csv", "Tanggal,Kategori,Jumlah Orang\n2024-01-01,Mahasiswa,5\n2024-01-01,Dosen,2\n2024-01-02,Mahasiswa,3\n")
	lib := writeFile(t, "openlib.csv", "Tanggal,Kategori,Jumlah Orang\n2024-02-01,Tas,1\n")
	l := New(fac, lib)

	s, err := l.Load(context.Background(), core.Faculty)
	if err != nil {
		t.Fatalf("load faculty: %v", err)
	}
	if s.Len() != 3 || s.Location() != core.Faculty {
		t.Fatalf("unexpected series: %d records for %s", s.Len(), s.Location())
	}
	if core.TotalOf(s) != 10 {
		t.Fatalf("unexpected total %d", core.TotalOf(s))
	}

	s, err = l.Load(context.Background(), core.Library)
	if err != nil || s.Len() != 1 {
		t.Fatalf("load library: %d records err=%v", s.Len(), err)
	}
	if l.Describe(core.Library) != lib {
		t.Fatalf("describe: got %q", l.Describe(core.Library))
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nope.csv"), "")
	for _, loc := range core.Locations() {
		_, err := l.Load(context.Background(), loc)
		if !errors.Is(err, core.ErrDataUnavailable) {
			t.Fatalf("%s: expected ErrDataUnavailable, got %v", loc, err)
		}
		var le *core.LoadError
		if !errors.As(err, &le) || le.Location != loc {
			t.Fatalf("%s: expected LoadError for the location, got %v", loc, err)
		}
	}
}

func TestLoadMalformedRow(t *testing.T) {
	p := writeFile(t, "bad.csv", "Tanggal,Kategori,Jumlah Orang\n2024-01-01,Dosen,banyak\n")
	_, err := New(p, "").Load(context.Background(), core.Faculty)
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in %q", err.Error())
	}
}

func TestLoadUnknownLocation(t *testing.T) {
	_, err := New("a", "b").Load(context.Background(), core.Location("canteen"))
	if !errors.Is(err, core.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}
}
