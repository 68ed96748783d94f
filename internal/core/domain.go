package core

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	Petrol   FuelType = "petrol"
	Diesel   FuelType = "diesel"
	LPG      FuelType = "lpg"
	Electric FuelType = "electric"
)

type (
	FuelType string

	Money struct {
		Cents int64
	}

	Car struct {
		ID       int64
		Plate    string
		Name     string
		FuelType FuelType
		// Consumption is litres (or kWh) per 100 km.
		Consumption float64
	}

	Trip struct {
		ID         int64
		CarID      int64
		LocationID int64
		PurposeID  int64
		Start      time.Time
		End        time.Time // zero while the trip is open

		StartOdometer   *float64
		EndOdometer     *float64
		Distance        *float64 // explicitly recorded km
		PlannedDistance *float64 // route planner estimate
		Note            string
	}

	FuelExpense struct {
		ID         int64
		CarID      int64
		LocationID int64
		TripID     *int64
		Date       time.Time
		Quantity   float64 // litres or kWh
		Amount     Money
		Note       string
	}

	// FuelPrice is the list price per unit for one period (month).
	FuelPrice struct {
		Period   time.Time
		Petrol   float64
		Diesel   float64
		LPG      float64
		Electric float64
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCar      = errors.New("unknown car")
	ErrOdometerReverse = errors.New("end odometer is lower than start odometer")
	ErrTripEndsEarly   = errors.New("trip ends before it starts")
)

// RecordDate implements calendar.Dated.
func (t Trip) RecordDate() time.Time { return t.Start }

// RecordDate implements calendar.Dated.
func (e FuelExpense) RecordDate() time.Time { return e.Date }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Car) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Plate, validation.Required, validation.Length(1, 16)),
		validation.Field(&c.FuelType, validation.Required, validation.In(Petrol, Diesel, LPG, Electric)),
		validation.Field(&c.Consumption, validation.Min(0.0)),
	)
}

func (t Trip) Validate() error {
	err := validation.ValidateStruct(&t,
		validation.Field(&t.CarID, validation.Required),
		validation.Field(&t.Start, validation.Required),
		validation.Field(&t.StartOdometer, validation.Min(0.0)),
		validation.Field(&t.EndOdometer, validation.Min(0.0)),
		validation.Field(&t.Distance, validation.Min(0.0)),
		validation.Field(&t.PlannedDistance, validation.Min(0.0)),
		validation.Field(&t.Note, validation.Length(0, 200)),
	)
	if err != nil {
		return err
	}
	if !t.End.IsZero() && t.End.Before(t.Start) {
		return ErrTripEndsEarly
	}
	if t.StartOdometer != nil && t.EndOdometer != nil && *t.EndOdometer < *t.StartOdometer {
		return ErrOdometerReverse
	}
	return nil
}

func (e FuelExpense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&e,
		validation.Field(&e.CarID, validation.Required),
		validation.Field(&e.Date, validation.Required),
		validation.Field(&e.Quantity, validation.Required, validation.Min(0.0)),
		validation.Field(&e.Note, validation.Length(0, 200)),
	)
}

func (p FuelPrice) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Period, validation.Required),
		validation.Field(&p.Petrol, validation.Min(0.0)),
		validation.Field(&p.Diesel, validation.Min(0.0)),
		validation.Field(&p.LPG, validation.Min(0.0)),
		validation.Field(&p.Electric, validation.Min(0.0)),
	)
}

// MonthStart normalises t to the first day of its month at midnight.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Float returns a pointer to v, for the optional numeric fields on Trip.
func Float(v float64) *float64 { return &v }
