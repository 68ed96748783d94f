package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"roadbook/internal/calendar"
	"roadbook/internal/core"
)

func TestSummaryService_MonthSummary(t *testing.T) {
	store := testStore()
	ctx := context.Background()
	feb := func(d, h int) time.Time { return time.Date(2024, 2, d, h, 0, 0, 0, time.UTC) }

	for _, tr := range []core.Trip{
		{CarID: 1, Start: feb(1, 8), Distance: core.Float(100)},
		{CarID: 1, Start: feb(1, 18), StartOdometer: core.Float(10), EndOdometer: core.Float(60)},
		{CarID: 1, Start: feb(29, 7)},
		{CarID: 1, Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Distance: core.Float(999)},
	} {
		if _, err := store.CreateTrip(ctx, tr); err != nil {
			t.Fatalf("create trip: %v", err)
		}
	}
	if _, err := store.CreateFuelExpense(ctx, core.FuelExpense{CarID: 1, Date: feb(29, 9), Quantity: 40, Amount: core.Money{Cents: 8050}}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	costs := NewCostService(store, store, time.Minute)
	svc := NewSummaryService(TripFetcher(store), FuelExpenseFetcher(store), store, costs)

	sum, err := svc.MonthSummary(ctx, feb(15, 0))
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if sum.Month != "2024-02" || len(sum.Days) != 29 {
		t.Fatalf("expected 29 days of 2024-02, got %s with %d", sum.Month, len(sum.Days))
	}

	d1 := sum.Days[0]
	if d1.Trips != 2 || !near(d1.DistanceKm, 150) || !near(d1.EstimatedCost, 15) {
		t.Fatalf("unexpected first day %+v", d1)
	}
	if d := sum.Days[14]; d.Trips != 0 || d.Refuels != 0 || d.Date != "2024-02-15" {
		t.Fatalf("expected empty day 15, got %+v", d)
	}
	last := sum.Days[28]
	if last.Trips != 1 || last.DistanceKm != 0 || last.Refuels != 1 || last.FuelSpendText != "80,50" {
		t.Fatalf("unexpected last day %+v", last)
	}
	if sum.Trips != 3 || !near(sum.DistanceKm, 150) || sum.FuelSpend.Cents != 8050 || sum.PricePeriod != "2024-02" {
		t.Fatalf("unexpected totals %+v", sum)
	}
}

func TestSummaryService_FetchError(t *testing.T) {
	store := testStore()
	boom := errors.New("backend down")
	failing := calendar.FetchFunc[core.Trip](func(context.Context, calendar.Window) ([]core.Trip, error) {
		return nil, boom
	})
	svc := NewSummaryService(failing, FuelExpenseFetcher(store), store, NewCostService(store, store, 0))
	if _, err := svc.MonthSummary(context.Background(), time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
