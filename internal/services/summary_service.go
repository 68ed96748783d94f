package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/sheets"
)

// DaySummary aggregates one calendar day.
type DaySummary struct {
	Day           int        `json:"day"`
	Date          string     `json:"date"`
	Trips         int        `json:"trips"`
	DistanceKm    float64    `json:"distance_km"`
	EstimatedCost float64    `json:"estimated_cost"`
	Refuels       int        `json:"refuels"`
	FuelQuantity  float64    `json:"fuel_quantity"`
	FuelSpend     core.Money `json:"-"`
	FuelSpendText string     `json:"fuel_spend"`
}

// MonthSummary is the per-day breakdown of one month plus its totals.
type MonthSummary struct {
	Month         string       `json:"month"`
	Days          []DaySummary `json:"days"`
	Trips         int          `json:"trips"`
	DistanceKm    float64      `json:"distance_km"`
	EstimatedCost float64      `json:"estimated_cost"`
	Refuels       int          `json:"refuels"`
	FuelQuantity  float64      `json:"fuel_quantity"`
	FuelSpend     core.Money   `json:"-"`
	FuelSpendText string       `json:"fuel_spend"`
	// PricePeriod is the price list month used for estimates, empty when
	// no price list exists.
	PricePeriod string `json:"price_period,omitempty"`
}

// SummaryService builds month summaries from trips and fuel expenses.
type SummaryService struct {
	trips  calendar.Fetcher[core.Trip]
	fuel   calendar.Fetcher[core.FuelExpense]
	cars   sheets.CarReader
	prices *CostService
}

// NewSummaryService takes the same fetchers the calendar screens use so
// summaries share their window cache.
func NewSummaryService(trips calendar.Fetcher[core.Trip], fuel calendar.Fetcher[core.FuelExpense], cars sheets.CarReader, costs *CostService) *SummaryService {
	return &SummaryService{trips: trips, fuel: fuel, cars: cars, prices: costs}
}

// MonthSummary summarizes ref's month. Every day of the month is present in
// Days, including days without records.
func (s *SummaryService) MonthSummary(ctx context.Context, ref time.Time) (*MonthSummary, error) {
	w := calendar.MonthWindow(ref)

	var (
		trips []core.Trip
		fuel  []core.FuelExpense
		cars  []core.Car
		price *core.FuelPrice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if trips, err = s.trips.Fetch(gctx, w); err != nil {
			return fmt.Errorf("fetch trips: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if fuel, err = s.fuel.Fetch(gctx, w); err != nil {
			return fmt.Errorf("fetch fuel expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if cars, err = s.cars.ListCars(gctx); err != nil {
			return fmt.Errorf("list cars: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		price, err = s.prices.LatestPrice(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]core.Car, len(cars))
	for _, c := range cars {
		byID[c.ID] = c
	}

	tripDays := calendar.AggregateByDay(ctx, calendar.FilterWindow(trips, w, calendar.TripStart), calendar.TripStart)
	fuelDays := calendar.AggregateByDay(ctx, calendar.FilterWindow(fuel, w, calendar.FuelExpenseDate), calendar.FuelExpenseDate)

	n := calendar.DaysIn(ref)
	sum := &MonthSummary{Month: w.Key(), Days: make([]DaySummary, n)}
	if price != nil {
		sum.PricePeriod = price.Period.Format("2006-01")
	}
	for day := 1; day <= n; day++ {
		d := DaySummary{Day: day, Date: w.Start.AddDate(0, 0, day-1).Format(time.DateOnly)}
		for _, t := range tripDays.Items(day) {
			km := core.EffectiveDistance(t)
			d.Trips++
			d.DistanceKm += km
			if car, ok := byID[t.CarID]; ok {
				if cost, ok := core.EstimateFuelCost(km, &car, price); ok {
					d.EstimatedCost += cost
				}
			}
		}
		for _, e := range fuelDays.Items(day) {
			d.Refuels++
			d.FuelQuantity += e.Quantity
			d.FuelSpend.Cents += e.Amount.Cents
		}
		d.FuelSpendText = d.FuelSpend.String()

		sum.Trips += d.Trips
		sum.DistanceKm += d.DistanceKm
		sum.EstimatedCost += d.EstimatedCost
		sum.Refuels += d.Refuels
		sum.FuelQuantity += d.FuelQuantity
		sum.FuelSpend.Cents += d.FuelSpend.Cents
		sum.Days[day-1] = d
	}
	sum.FuelSpendText = sum.FuelSpend.String()
	return sum, nil
}

// Trips returns the trips of w through the shared fetcher.
func (s *SummaryService) Trips(ctx context.Context, w calendar.Window) ([]core.Trip, error) {
	trips, err := s.trips.Fetch(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("fetch trips: %w", err)
	}
	return calendar.FilterWindow(trips, w, calendar.TripStart), nil
}

// FuelExpenses returns the fuel expenses of w through the shared fetcher.
func (s *SummaryService) FuelExpenses(ctx context.Context, w calendar.Window) ([]core.FuelExpense, error) {
	items, err := s.fuel.Fetch(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("fetch fuel expenses: %w", err)
	}
	return calendar.FilterWindow(items, w, calendar.FuelExpenseDate), nil
}
