// Package sheets declares the record source ports implemented by the
// memory, Google Sheets and SQLite adapters.
package sheets

import (
	"context"
	"time"

	"roadbook/internal/core"
)

// Ports for outbound adapters. Range queries are half-open: [from, to).
type (
	TripLister interface {
		ListTrips(ctx context.Context, from, to time.Time) ([]core.Trip, error)
	}

	FuelExpenseLister interface {
		ListFuelExpenses(ctx context.Context, from, to time.Time) ([]core.FuelExpense, error)
	}

	// CarReader resolves cars. GetCar returns core.ErrUnknownCar when the
	// id does not exist.
	CarReader interface {
		GetCar(ctx context.Context, id int64) (core.Car, error)
		ListCars(ctx context.Context) ([]core.Car, error)
	}

	// FuelPriceReader returns the whole price list in no particular order.
	FuelPriceReader interface {
		ListFuelPrices(ctx context.Context) ([]core.FuelPrice, error)
	}

	TripWriter interface {
		CreateTrip(ctx context.Context, t core.Trip) (id int64, err error)
	}

	FuelExpenseWriter interface {
		CreateFuelExpense(ctx context.Context, e core.FuelExpense) (id int64, err error)
	}
)

// InRange reports whether t falls in [from, to).
func InRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
