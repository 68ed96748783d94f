package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"roadbook/internal/core"
	ports "roadbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var errNotInitialized = errors.New("sheets service not initialized")

// Config names the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID string
	TripsSheet    string
	FuelSheet     string
	CarsSheet     string
	PricesSheet   string
	Location      *time.Location
	// RowCacheTTL bounds how long the row count of a tab is trusted before
	// an append re-reads it.
	RowCacheTTL time.Duration
}

type rowCount struct {
	n         int
	expiresAt time.Time
}

type Client struct {
	svc *gsheet.Service
	cfg Config

	mu   sync.Mutex
	rows map[string]rowCount
}

// Ensure interface conformance
var (
	_ ports.TripLister        = (*Client)(nil)
	_ ports.FuelExpenseLister = (*Client)(nil)
	_ ports.CarReader         = (*Client)(nil)
	_ ports.FuelPriceReader   = (*Client)(nil)
	_ ports.TripWriter        = (*Client)(nil)
	_ ports.FuelExpenseWriter = (*Client)(nil)
)

func (c Config) withDefaults() Config {
	if c.TripsSheet == "" {
		c.TripsSheet = "Trips"
	}
	if c.FuelSheet == "" {
		c.FuelSheet = "Fuel"
	}
	if c.CarsSheet == "" {
		c.CarsSheet = "Cars"
	}
	if c.PricesSheet == "" {
		c.PricesSheet = "FuelPrices"
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.RowCacheTTL == 0 {
		c.RowCacheTTL = 30 * time.Second
	}
	return c
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional tab names: GOOGLE_TRIPS_SHEET, GOOGLE_FUEL_SHEET,
// GOOGLE_CARS_SHEET, GOOGLE_PRICES_SHEET.
func NewFromEnv(ctx context.Context, loc *time.Location) (*Client, error) {
	cfg := Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		TripsSheet:    strings.TrimSpace(os.Getenv("GOOGLE_TRIPS_SHEET")),
		FuelSheet:     strings.TrimSpace(os.Getenv("GOOGLE_FUEL_SHEET")),
		CarsSheet:     strings.TrimSpace(os.Getenv("GOOGLE_CARS_SHEET")),
		PricesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_PRICES_SHEET")),
		Location:      loc,
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, cfg), nil
}

// New wraps an initialised Sheets service.
func New(svc *gsheet.Service, cfg Config) *Client {
	return &Client{svc: svc, cfg: cfg.withDefaults(), rows: map[string]rowCount{}}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func (c *Client) readRows(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errNotInitialized
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	c.storeRowCount(sheet, len(resp.Values))
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	// First row is the header.
	return resp.Values[1:], nil
}

func (c *Client) ListTrips(ctx context.Context, from, to time.Time) ([]core.Trip, error) {
	rows, err := c.readRows(ctx, c.cfg.TripsSheet, "A:K")
	if err != nil {
		return nil, err
	}
	var out []core.Trip
	for i, row := range rows {
		t, err := parseTripRow(row, c.cfg.Location)
		if errors.Is(err, errEmptyRow) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed trip row", "sheet", c.cfg.TripsSheet, "row", i+2, "error", err)
			continue
		}
		if ports.InRange(t.Start, from, to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) ListFuelExpenses(ctx context.Context, from, to time.Time) ([]core.FuelExpense, error) {
	rows, err := c.readRows(ctx, c.cfg.FuelSheet, "A:H")
	if err != nil {
		return nil, err
	}
	var out []core.FuelExpense
	for i, row := range rows {
		e, err := parseFuelRow(row, c.cfg.Location)
		if errors.Is(err, errEmptyRow) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed fuel row", "sheet", c.cfg.FuelSheet, "row", i+2, "error", err)
			continue
		}
		if ports.InRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Client) ListCars(ctx context.Context) ([]core.Car, error) {
	rows, err := c.readRows(ctx, c.cfg.CarsSheet, "A:E")
	if err != nil {
		return nil, err
	}
	var out []core.Car
	for i, row := range rows {
		car, err := parseCarRow(row)
		if errors.Is(err, errEmptyRow) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed car row", "sheet", c.cfg.CarsSheet, "row", i+2, "error", err)
			continue
		}
		out = append(out, car)
	}
	return out, nil
}

func (c *Client) GetCar(ctx context.Context, id int64) (core.Car, error) {
	cars, err := c.ListCars(ctx)
	if err != nil {
		return core.Car{}, err
	}
	for _, car := range cars {
		if car.ID == id {
			return car, nil
		}
	}
	return core.Car{}, fmt.Errorf("car %d: %w", id, core.ErrUnknownCar)
}

func (c *Client) ListFuelPrices(ctx context.Context) ([]core.FuelPrice, error) {
	rows, err := c.readRows(ctx, c.cfg.PricesSheet, "A:E")
	if err != nil {
		return nil, err
	}
	var out []core.FuelPrice
	for i, row := range rows {
		p, err := parsePriceRow(row)
		if errors.Is(err, errEmptyRow) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed price row", "sheet", c.cfg.PricesSheet, "row", i+2, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CreateTrip writes the trip on the next free row. The id is the data row
// number, so it stays stable as long as rows are never deleted.
func (c *Client) CreateTrip(ctx context.Context, t core.Trip) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := c.GetCar(ctx, t.CarID); err != nil {
		return 0, err
	}
	next, err := c.nextRow(ctx, c.cfg.TripsSheet)
	if err != nil {
		return 0, err
	}
	t.ID = int64(next - 1)
	if err := c.writeRow(ctx, c.cfg.TripsSheet, "A", "K", next, tripRow(t)); err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (c *Client) CreateFuelExpense(ctx context.Context, e core.FuelExpense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}
	if _, err := c.GetCar(ctx, e.CarID); err != nil {
		return 0, err
	}
	next, err := c.nextRow(ctx, c.cfg.FuelSheet)
	if err != nil {
		return 0, err
	}
	e.ID = int64(next - 1)
	if err := c.writeRow(ctx, c.cfg.FuelSheet, "A", "H", next, fuelRow(e)); err != nil {
		return 0, err
	}
	return e.ID, nil
}

func (c *Client) writeRow(ctx context.Context, sheet, firstCol, lastCol string, row int, values []any) error {
	rng := fmt.Sprintf("%s!%s%d:%s%d", sheet, firstCol, row, lastCol, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCount(sheet)
		return fmt.Errorf("update %s: %w", rng, err)
	}
	c.storeRowCount(sheet, row)
	return nil
}

// nextRow returns the 1-based index of the first empty row of sheet.
func (c *Client) nextRow(ctx context.Context, sheet string) (int, error) {
	if n, ok := c.cachedRowCount(sheet); ok {
		return n + 1, nil
	}
	if c.svc == nil {
		return 0, errNotInitialized
	}
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	n := len(resp.Values)
	if n == 0 {
		// Leave room for the header.
		n = 1
	}
	c.storeRowCount(sheet, n)
	return n + 1, nil
}

func (c *Client) cachedRowCount(sheet string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc, ok := c.rows[sheet]
	if !ok || !time.Now().Before(rc.expiresAt) {
		return 0, false
	}
	return rc.n, true
}

func (c *Client) storeRowCount(sheet string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[sheet] = rowCount{n: n, expiresAt: time.Now().Add(c.cfg.RowCacheTTL)}
}

func (c *Client) invalidateRowCount(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, sheet)
}
