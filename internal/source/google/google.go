// Package google loads detection series from a Google Sheets spreadsheet,
// one sheet per location.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"occupancy/internal/core"
	"occupancy/internal/source"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options names the spreadsheet and the sheet holding each location's export.
type Options struct {
	SpreadsheetID string
	FacultySheet  string
	LibrarySheet  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheets        map[core.Location]string
}

var (
	_ source.SeriesLoader = (*Client)(nil)
	_ source.Describer    = (*Client)(nil)
)

// New creates a client authenticated with service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts)
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.FacultySheet == "" {
		opts.FacultySheet = "FIT"
	}
	if opts.LibrarySheet == "" {
		opts.LibrarySheet = "Open Library"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheets: map[core.Location]string{
			core.Faculty: opts.FacultySheet,
			core.Library: opts.LibrarySheet,
		},
	}, nil
}

// newSheetsService initializes a read-only Sheets service from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service", "credentials_size", len(credentialsJSON))
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) Describe(loc core.Location) string {
	return c.readRange(loc)
}

func (c *Client) readRange(loc core.Location) string {
	return fmt.Sprintf("%s!A:C", c.sheets[loc])
}

// Load reads columns A:C of the location's sheet. The first row must be the header.
func (c *Client) Load(ctx context.Context, loc core.Location) (core.LocationSeries, error) {
	if _, err := core.ParseLocation(string(loc)); err != nil {
		return core.LocationSeries{}, err
	}
	rng := c.readRange(loc)
	fail := func(err error) (core.LocationSeries, error) {
		return core.LocationSeries{}, &core.LoadError{Location: loc, Source: rng, Err: err}
	}
	if c.svc == nil {
		return fail(errors.New("sheets service not initialized"))
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fail(fmt.Errorf("read %s: %w", rng, err))
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		rows = append(rows, source.ToStrings(row))
	}
	s, err := source.ParseRows(loc, rows)
	if err != nil {
		return fail(err)
	}
	return s, nil
}
