package source

import (
	"errors"
	"strings"
	"testing"

	"occupancy/internal/core"
)

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"\ufeffTanggal", "Kategori", "Jumlah Orang"},
		{"2024-01-01", "Mahasiswa", "5"},
		{"2024-01-01 08:15:00", "Dosen", "2"},
		{"", "", ""},
		{"2024-01-02", "Tas", "3.0"},
	}
	s, err := ParseRows(core.Faculty, rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", s.Len())
	}
	recs := s.Records()
	if recs[1].Date != core.NewDate(2024, 1, 1) || recs[1].Count != 2 {
		t.Fatalf("unexpected second record %+v", recs[1])
	}
	if recs[2].Count != 3 {
		t.Fatalf("expected 3 from \"3.0\", got %d", recs[2].Count)
	}
}

func TestParseRowsColumnOrderAndCase(t *testing.T) {
	rows := [][]string{
		{"jumlah orang", "TANGGAL", "kategori", "extra"},
		{"7", "2024/02/03", "Mahasiswa", "ignored"},
	}
	s, err := ParseRows(core.Library, rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := s.Records()[0]
	if r.Count != 7 || r.Category != "Mahasiswa" || r.Date != core.NewDate(2024, 2, 3) {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestParseRowsErrors(t *testing.T) {
	cases := []struct {
		name string
		rows [][]string
		want error
		line string
	}{
		{"no header", nil, ErrMissingHeader, ""},
		{"missing column", [][]string{{"Tanggal", "Kategori"}}, ErrMissingColumn, ""},
		{"negative count", [][]string{{"Tanggal", "Kategori", "Jumlah Orang"}, {"2024-01-01", "Dosen", "-1"}}, core.ErrNegativeCount, "line 2"},
		{"empty category", [][]string{{"Tanggal", "Kategori", "Jumlah Orang"}, {"2024-01-01", "Dosen", "1"}, {"2024-01-01", " ", "1"}}, core.ErrEmptyCategory, "line 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRows(core.Faculty, tc.rows)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.line != "" && !strings.Contains(err.Error(), tc.line) {
				t.Fatalf("expected %q in %q", tc.line, err.Error())
			}
		})
	}

	_, err := ParseRows(core.Faculty, [][]string{{"Tanggal", "Kategori", "Jumlah Orang"}, {"kemarin", "Dosen", "1"}})
	if err == nil || !strings.Contains(err.Error(), "invalid date") {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestParseCount(t *testing.T) {
	good := map[string]int64{"0": 0, " 12 ": 12, "12.0": 12, "12.": 12, "12.000": 12}
	for in, want := range good {
		got, err := ParseCount(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %d err=%v", in, got, err)
		}
	}
	for _, in := range []string{"", "abc", "1.5", "1,0"} {
		if _, err := ParseCount(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := core.NewDate(2024, 3, 9)
	for _, in := range []string{"2024-03-09", "2024-03-09 10:11:12", "2024-03-09 10:11", "2024-03-09T10:11:12", "2024-03-09T10:11:12Z", "2024/03/09"} {
		got, err := ParseDate(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %s err=%v", in, got, err)
		}
	}
}

func TestToStrings(t *testing.T) {
	got := ToStrings([]interface{}{" a ", 3, 4.5, nil})
	want := []string{"a", "3", "4.5", "<nil>"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}
