package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"occupancy/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	c, err := NewWithService(svc, Options{SpreadsheetID: "sheet-id"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestNewWithService_MissingSpreadsheetID(t *testing.T) {
	_, err := NewWithService(nil, Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"FIT!A1:C4","majorDimension":"ROWS","values":[
			["Tanggal","Kategori","Jumlah Orang"],
			["2024-01-01","Mahasiswa",5],
			["2024-01-01","Dosen","2"],
			["2024-01-02","Mahasiswa",3]
		]}`))
	})

	s, err := c.Load(context.Background(), core.Faculty)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 3 || core.TotalOf(s) != 10 {
		t.Fatalf("unexpected series: %d records, total %d", s.Len(), core.TotalOf(s))
	}
	if !strings.Contains(gotPath, "sheet-id") || !strings.Contains(gotPath, "FIT!A:C") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
}

func TestLoadAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})
	_, err := c.Load(context.Background(), core.Library)
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if c.Describe(core.Library) != "Open Library!A:C" {
		t.Fatalf("unexpected range %q", c.Describe(core.Library))
	}
}

func TestLoadNilService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheets: map[core.Location]string{core.Faculty: "FIT"}}
	if _, err := c.Load(context.Background(), core.Faculty); !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
