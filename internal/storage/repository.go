// Package storage persists cars, fuel prices, trips and fuel expenses in
// SQLite. The schema is managed by embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"roadbook/internal/core"
	ports "roadbook/internal/sheets"

	_ "modernc.org/sqlite"
)

var (
	_ ports.TripLister        = (*SQLiteRepository)(nil)
	_ ports.FuelExpenseLister = (*SQLiteRepository)(nil)
	_ ports.CarReader         = (*SQLiteRepository)(nil)
	_ ports.FuelPriceReader   = (*SQLiteRepository)(nil)
	_ ports.TripWriter        = (*SQLiteRepository)(nil)
	_ ports.FuelExpenseWriter = (*SQLiteRepository)(nil)
)

const periodLayout = "2006-01"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Times read back are expressed in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteRepository{db: db, queries: New(db), loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetCar(ctx context.Context, id int64) (core.Car, error) {
	row, err := r.queries.GetCar(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Car{}, fmt.Errorf("car %d: %w", id, core.ErrUnknownCar)
	}
	if err != nil {
		return core.Car{}, fmt.Errorf("get car %d: %w", id, err)
	}
	return carFromRow(row), nil
}

func (r *SQLiteRepository) ListCars(ctx context.Context) ([]core.Car, error) {
	rows, err := r.queries.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	out := make([]core.Car, 0, len(rows))
	for _, row := range rows {
		out = append(out, carFromRow(row))
	}
	return out, nil
}

// UpsertCar inserts or replaces the car with c.ID.
func (r *SQLiteRepository) UpsertCar(ctx context.Context, c core.Car) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertCar(ctx, CarRow{
		ID:          c.ID,
		Plate:       c.Plate,
		Name:        c.Name,
		FuelType:    string(c.FuelType),
		Consumption: c.Consumption,
	})
	if err != nil {
		return fmt.Errorf("upsert car %d: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListFuelPrices(ctx context.Context) ([]core.FuelPrice, error) {
	rows, err := r.queries.ListFuelPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fuel prices: %w", err)
	}
	out := make([]core.FuelPrice, 0, len(rows))
	for _, row := range rows {
		period, err := time.ParseInLocation(periodLayout, row.Period, r.loc)
		if err != nil {
			slog.Warn("Skipping fuel price with invalid period", "period", row.Period, "error", err)
			continue
		}
		out = append(out, core.FuelPrice{
			Period:   period,
			Petrol:   row.Petrol,
			Diesel:   row.Diesel,
			LPG:      row.Lpg,
			Electric: row.Electric,
		})
	}
	return out, nil
}

// UpsertFuelPrice stores the price list of p's month.
func (r *SQLiteRepository) UpsertFuelPrice(ctx context.Context, p core.FuelPrice) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertFuelPrice(ctx, FuelPriceRow{
		Period:   p.Period.Format(periodLayout),
		Petrol:   p.Petrol,
		Diesel:   p.Diesel,
		Lpg:      p.LPG,
		Electric: p.Electric,
	})
	if err != nil {
		return fmt.Errorf("upsert fuel price %s: %w", p.Period.Format(periodLayout), err)
	}
	return nil
}

func (r *SQLiteRepository) ListTrips(ctx context.Context, from, to time.Time) ([]core.Trip, error) {
	rows, err := r.queries.ListTripsBetween(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	out := make([]core.Trip, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.tripFromRow(row))
	}
	return out, nil
}

// CreateTrip inserts the trip and returns its new id.
func (r *SQLiteRepository) CreateTrip(ctx context.Context, t core.Trip) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if _, err := r.GetCar(ctx, t.CarID); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTrip(ctx, tripToRow(t))
	if err != nil {
		return 0, fmt.Errorf("create trip: %w", err)
	}
	slog.InfoContext(ctx, "Trip saved to SQLite", "id", id, "car_id", t.CarID, "start", t.Start)
	return id, nil
}

func (r *SQLiteRepository) ListFuelExpenses(ctx context.Context, from, to time.Time) ([]core.FuelExpense, error) {
	rows, err := r.queries.ListFuelExpensesBetween(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list fuel expenses: %w", err)
	}
	out := make([]core.FuelExpense, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.fuelFromRow(row))
	}
	return out, nil
}

// CreateFuelExpense inserts the expense and returns its new id.
func (r *SQLiteRepository) CreateFuelExpense(ctx context.Context, e core.FuelExpense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if _, err := r.GetCar(ctx, e.CarID); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateFuelExpense(ctx, fuelToRow(e))
	if err != nil {
		return 0, fmt.Errorf("create fuel expense: %w", err)
	}
	slog.InfoContext(ctx, "Fuel expense saved to SQLite",
		"id", id,
		"car_id", e.CarID,
		"amount_cents", e.Amount.Cents,
		"quantity", e.Quantity)
	return id, nil
}

// Snapshot is a full copy of the fleet records, as produced by an import.
type Snapshot struct {
	Cars   []core.Car
	Prices []core.FuelPrice
	Trips  []core.Trip
	Fuel   []core.FuelExpense
}

// Import upserts every record of s in one transaction. Invalid records
// abort the whole import.
func (r *SQLiteRepository) Import(ctx context.Context, s Snapshot) error {
	return r.withTx(ctx, func(q *Queries) error {
		for _, c := range s.Cars {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("car %d: %w", c.ID, err)
			}
			if err := q.UpsertCar(ctx, CarRow{ID: c.ID, Plate: c.Plate, Name: c.Name, FuelType: string(c.FuelType), Consumption: c.Consumption}); err != nil {
				return fmt.Errorf("upsert car %d: %w", c.ID, err)
			}
		}
		for _, p := range s.Prices {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("price %s: %w", p.Period.Format(periodLayout), err)
			}
			row := FuelPriceRow{Period: p.Period.Format(periodLayout), Petrol: p.Petrol, Diesel: p.Diesel, Lpg: p.LPG, Electric: p.Electric}
			if err := q.UpsertFuelPrice(ctx, row); err != nil {
				return fmt.Errorf("upsert price %s: %w", row.Period, err)
			}
		}
		for _, t := range s.Trips {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("trip %d: %w", t.ID, err)
			}
			if err := q.UpsertTrip(ctx, tripToRow(t)); err != nil {
				return fmt.Errorf("upsert trip %d: %w", t.ID, err)
			}
		}
		for _, e := range s.Fuel {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("fuel expense %d: %w", e.ID, err)
			}
			if err := q.UpsertFuelExpense(ctx, fuelToRow(e)); err != nil {
				return fmt.Errorf("upsert fuel expense %d: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func carFromRow(row CarRow) core.Car {
	return core.Car{
		ID:          row.ID,
		Plate:       row.Plate,
		Name:        row.Name,
		FuelType:    core.FuelType(row.FuelType),
		Consumption: row.Consumption,
	}
}

func (r *SQLiteRepository) tripFromRow(row TripRow) core.Trip {
	t := core.Trip{
		ID:              row.ID,
		CarID:           row.CarID,
		LocationID:      row.LocationID,
		PurposeID:       row.PurposeID,
		Start:           time.Unix(row.StartAt, 0).In(r.loc),
		StartOdometer:   nullFloat(row.StartOdometer),
		EndOdometer:     nullFloat(row.EndOdometer),
		Distance:        nullFloat(row.Distance),
		PlannedDistance: nullFloat(row.PlannedDistance),
		Note:            row.Note,
	}
	if row.EndAt.Valid {
		t.End = time.Unix(row.EndAt.Int64, 0).In(r.loc)
	}
	return t
}

func tripToRow(t core.Trip) TripRow {
	row := TripRow{
		ID:              t.ID,
		CarID:           t.CarID,
		LocationID:      t.LocationID,
		PurposeID:       t.PurposeID,
		StartAt:         t.Start.Unix(),
		StartOdometer:   toNullFloat(t.StartOdometer),
		EndOdometer:     toNullFloat(t.EndOdometer),
		Distance:        toNullFloat(t.Distance),
		PlannedDistance: toNullFloat(t.PlannedDistance),
		Note:            t.Note,
	}
	if !t.End.IsZero() {
		row.EndAt = sql.NullInt64{Int64: t.End.Unix(), Valid: true}
	}
	return row
}

func (r *SQLiteRepository) fuelFromRow(row FuelExpenseRow) core.FuelExpense {
	e := core.FuelExpense{
		ID:         row.ID,
		CarID:      row.CarID,
		LocationID: row.LocationID,
		Date:       time.Unix(row.SpentAt, 0).In(r.loc),
		Quantity:   row.Quantity,
		Amount:     core.Money{Cents: row.AmountCents},
		Note:       row.Note,
	}
	if row.TripID.Valid {
		id := row.TripID.Int64
		e.TripID = &id
	}
	return e
}

func fuelToRow(e core.FuelExpense) FuelExpenseRow {
	row := FuelExpenseRow{
		ID:          e.ID,
		CarID:       e.CarID,
		LocationID:  e.LocationID,
		SpentAt:     e.Date.Unix(),
		Quantity:    e.Quantity,
		AmountCents: e.Amount.Cents,
		Note:        e.Note,
	}
	if e.TripID != nil {
		row.TripID = sql.NullInt64{Int64: *e.TripID, Valid: true}
	}
	return row
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
