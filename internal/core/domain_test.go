package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in   string
		want Location
		ok   bool
	}{
		{"faculty", Faculty, true},
		{" Library ", Library, true},
		{"FACULTY", Faculty, true},
		{"canteen", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseLocation(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownLocation) {
			t.Fatalf("%q expected ErrUnknownLocation, got %v", tc.in, err)
		}
	}
}

func TestDateOfTruncatesTimeOfDay(t *testing.T) {
	d := DateOf(time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC))
	if d != NewDate(2024, 1, 2) {
		t.Fatalf("expected 2024-01-02, got %s", d)
	}
	if d.String() != "2024-01-02" {
		t.Fatalf("unexpected string form %q", d.String())
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-09 ")
	if err != nil || d != NewDate(2024, 3, 9) {
		t.Fatalf("unexpected parse result %s err=%v", d, err)
	}
	if _, err := ParseDate("09/03/2024"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDetectionRecordValidate(t *testing.T) {
	good := DetectionRecord{Date: NewDate(2024, 1, 1), Category: "Mahasiswa", Count: 0}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		rec  DetectionRecord
		want error
	}{
		{DetectionRecord{Category: "Dosen", Count: 1}, ErrZeroDate},
		{DetectionRecord{Date: NewDate(2024, 1, 1), Category: "  ", Count: 1}, ErrEmptyCategory},
		{DetectionRecord{Date: NewDate(2024, 1, 1), Category: "Dosen", Count: -1}, ErrNegativeCount},
	}
	for i, tc := range bads {
		if err := tc.rec.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestLoadErrorMatchesDataUnavailable(t *testing.T) {
	cause := fmt.Errorf("open data/x.csv: no such file")
	err := error(&LoadError{Location: Faculty, Source: "data/x.csv", Err: cause})

	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected errors.Is ErrDataUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected LoadError to unwrap to its cause")
	}
	var le *LoadError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &le) || le.Location != Faculty {
		t.Fatalf("expected errors.As to find the LoadError")
	}
	want := "faculty data unavailable (data/x.csv): open data/x.csv: no such file"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestComparisonCategoriesIsACopy(t *testing.T) {
	c := ComparisonCategories()
	c[0] = "changed"
	if ComparisonCategories()[0] != CategoryLecturer {
		t.Fatalf("comparison categories must not be shared")
	}
}
