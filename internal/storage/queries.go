package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CarRow struct {
	ID          int64
	Plate       string
	Name        string
	FuelType    string
	Consumption float64
}

type FuelPriceRow struct {
	Period   string
	Petrol   float64
	Diesel   float64
	Lpg      float64
	Electric float64
}

type TripRow struct {
	ID              int64
	CarID           int64
	LocationID      int64
	PurposeID       int64
	StartAt         int64
	EndAt           sql.NullInt64
	StartOdometer   sql.NullFloat64
	EndOdometer     sql.NullFloat64
	Distance        sql.NullFloat64
	PlannedDistance sql.NullFloat64
	Note            string
}

type FuelExpenseRow struct {
	ID          int64
	CarID       int64
	LocationID  int64
	TripID      sql.NullInt64
	SpentAt     int64
	Quantity    float64
	AmountCents int64
	Note        string
}

const upsertCar = `-- name: UpsertCar :exec
INSERT INTO cars (id, plate, name, fuel_type, consumption)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    plate = excluded.plate,
    name = excluded.name,
    fuel_type = excluded.fuel_type,
    consumption = excluded.consumption
`

func (q *Queries) UpsertCar(ctx context.Context, arg CarRow) error {
	_, err := q.db.ExecContext(ctx, upsertCar, arg.ID, arg.Plate, arg.Name, arg.FuelType, arg.Consumption)
	return err
}

const getCar = `-- name: GetCar :one
SELECT id, plate, name, fuel_type, consumption FROM cars WHERE id = ?
`

func (q *Queries) GetCar(ctx context.Context, id int64) (CarRow, error) {
	row := q.db.QueryRowContext(ctx, getCar, id)
	var i CarRow
	err := row.Scan(&i.ID, &i.Plate, &i.Name, &i.FuelType, &i.Consumption)
	return i, err
}

const listCars = `-- name: ListCars :many
SELECT id, plate, name, fuel_type, consumption FROM cars ORDER BY id
`

func (q *Queries) ListCars(ctx context.Context) ([]CarRow, error) {
	rows, err := q.db.QueryContext(ctx, listCars)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CarRow
	for rows.Next() {
		var i CarRow
		if err := rows.Scan(&i.ID, &i.Plate, &i.Name, &i.FuelType, &i.Consumption); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertFuelPrice = `-- name: UpsertFuelPrice :exec
INSERT INTO fuel_prices (period, petrol, diesel, lpg, electric)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(period) DO UPDATE SET
    petrol = excluded.petrol,
    diesel = excluded.diesel,
    lpg = excluded.lpg,
    electric = excluded.electric
`

func (q *Queries) UpsertFuelPrice(ctx context.Context, arg FuelPriceRow) error {
	_, err := q.db.ExecContext(ctx, upsertFuelPrice, arg.Period, arg.Petrol, arg.Diesel, arg.Lpg, arg.Electric)
	return err
}

const listFuelPrices = `-- name: ListFuelPrices :many
SELECT period, petrol, diesel, lpg, electric FROM fuel_prices ORDER BY period
`

func (q *Queries) ListFuelPrices(ctx context.Context) ([]FuelPriceRow, error) {
	rows, err := q.db.QueryContext(ctx, listFuelPrices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FuelPriceRow
	for rows.Next() {
		var i FuelPriceRow
		if err := rows.Scan(&i.Period, &i.Petrol, &i.Diesel, &i.Lpg, &i.Electric); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTrip = `-- name: CreateTrip :one
INSERT INTO trips (car_id, location_id, purpose_id, start_at, end_at,
    start_odometer, end_odometer, distance, planned_distance, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateTrip(ctx context.Context, arg TripRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTrip,
		arg.CarID, arg.LocationID, arg.PurposeID, arg.StartAt, arg.EndAt,
		arg.StartOdometer, arg.EndOdometer, arg.Distance, arg.PlannedDistance, arg.Note)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertTrip = `-- name: UpsertTrip :exec
INSERT INTO trips (id, car_id, location_id, purpose_id, start_at, end_at,
    start_odometer, end_odometer, distance, planned_distance, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    car_id = excluded.car_id,
    location_id = excluded.location_id,
    purpose_id = excluded.purpose_id,
    start_at = excluded.start_at,
    end_at = excluded.end_at,
    start_odometer = excluded.start_odometer,
    end_odometer = excluded.end_odometer,
    distance = excluded.distance,
    planned_distance = excluded.planned_distance,
    note = excluded.note
`

func (q *Queries) UpsertTrip(ctx context.Context, arg TripRow) error {
	_, err := q.db.ExecContext(ctx, upsertTrip,
		arg.ID, arg.CarID, arg.LocationID, arg.PurposeID, arg.StartAt, arg.EndAt,
		arg.StartOdometer, arg.EndOdometer, arg.Distance, arg.PlannedDistance, arg.Note)
	return err
}

const listTripsBetween = `-- name: ListTripsBetween :many
SELECT id, car_id, location_id, purpose_id, start_at, end_at,
    start_odometer, end_odometer, distance, planned_distance, note
FROM trips
WHERE start_at >= ? AND start_at < ?
ORDER BY start_at, id
`

func (q *Queries) ListTripsBetween(ctx context.Context, from, to int64) ([]TripRow, error) {
	rows, err := q.db.QueryContext(ctx, listTripsBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TripRow
	for rows.Next() {
		var i TripRow
		if err := rows.Scan(
			&i.ID, &i.CarID, &i.LocationID, &i.PurposeID, &i.StartAt, &i.EndAt,
			&i.StartOdometer, &i.EndOdometer, &i.Distance, &i.PlannedDistance, &i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createFuelExpense = `-- name: CreateFuelExpense :one
INSERT INTO fuel_expenses (car_id, location_id, trip_id, spent_at, quantity, amount_cents, note)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateFuelExpense(ctx context.Context, arg FuelExpenseRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, createFuelExpense,
		arg.CarID, arg.LocationID, arg.TripID, arg.SpentAt, arg.Quantity, arg.AmountCents, arg.Note)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertFuelExpense = `-- name: UpsertFuelExpense :exec
INSERT INTO fuel_expenses (id, car_id, location_id, trip_id, spent_at, quantity, amount_cents, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    car_id = excluded.car_id,
    location_id = excluded.location_id,
    trip_id = excluded.trip_id,
    spent_at = excluded.spent_at,
    quantity = excluded.quantity,
    amount_cents = excluded.amount_cents,
    note = excluded.note
`

func (q *Queries) UpsertFuelExpense(ctx context.Context, arg FuelExpenseRow) error {
	_, err := q.db.ExecContext(ctx, upsertFuelExpense,
		arg.ID, arg.CarID, arg.LocationID, arg.TripID, arg.SpentAt, arg.Quantity, arg.AmountCents, arg.Note)
	return err
}

const listFuelExpensesBetween = `-- name: ListFuelExpensesBetween :many
SELECT id, car_id, location_id, trip_id, spent_at, quantity, amount_cents, note
FROM fuel_expenses
WHERE spent_at >= ? AND spent_at < ?
ORDER BY spent_at, id
`

func (q *Queries) ListFuelExpensesBetween(ctx context.Context, from, to int64) ([]FuelExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listFuelExpensesBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FuelExpenseRow
	for rows.Next() {
		var i FuelExpenseRow
		if err := rows.Scan(
			&i.ID, &i.CarID, &i.LocationID, &i.TripID, &i.SpentAt, &i.Quantity, &i.AmountCents, &i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
