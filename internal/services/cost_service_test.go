package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"roadbook/internal/core"
)

type countingPrices struct {
	prices []core.FuelPrice
	calls  int
	err    error
}

func (c *countingPrices) ListFuelPrices(context.Context) ([]core.FuelPrice, error) {
	c.calls++
	return c.prices, c.err
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCostService_EstimateRoute(t *testing.T) {
	store := testStore()
	svc := NewCostService(store, store, time.Minute)
	ctx := context.Background()

	est, err := svc.EstimateRoute(ctx, 1, 100)
	if err != nil {
		t.Fatalf("EstimateRoute() error = %v", err)
	}
	// 5 l/100km over 100 km at the February diesel price of 2.0.
	if !est.Known || !near(est.Cost, 10) || est.PricePeriod != "2024-02" || est.UnitPrice != 2.0 {
		t.Fatalf("unexpected estimate %+v", est)
	}

	for _, km := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := svc.EstimateRoute(ctx, 1, km); !errors.Is(err, ErrInvalidDistance) {
			t.Errorf("EstimateRoute(%v) error = %v, want ErrInvalidDistance", km, err)
		}
	}
	if _, err := svc.EstimateRoute(ctx, 42, 10); !errors.Is(err, core.ErrUnknownCar) {
		t.Fatalf("expected ErrUnknownCar, got %v", err)
	}
}

func TestCostService_EstimateTripCost(t *testing.T) {
	store := testStore()
	svc := NewCostService(store, store, 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		trip  core.Trip
		cost  float64
		known bool
	}{
		{"odometer delta", core.Trip{CarID: 1, StartOdometer: core.Float(1000), EndOdometer: core.Float(1200)}, 20, true},
		{"explicit distance wins", core.Trip{CarID: 1, Distance: core.Float(50), PlannedDistance: core.Float(80)}, 5, true},
		{"planned only", core.Trip{CarID: 1, PlannedDistance: core.Float(10)}, 1, true},
		{"no distance", core.Trip{CarID: 1}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := svc.EstimateTripCost(ctx, tt.trip)
			if err != nil {
				t.Fatalf("EstimateTripCost() error = %v", err)
			}
			if est.Known != tt.known || !near(est.Cost, tt.cost) {
				t.Fatalf("got cost %v known %v, want %v %v", est.Cost, est.Known, tt.cost, tt.known)
			}
		})
	}
}

func TestCostService_PriceListCached(t *testing.T) {
	store := testStore()
	prices := &countingPrices{prices: []core.FuelPrice{{Period: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Diesel: 1.8}}}
	svc := NewCostService(store, prices, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.EstimateRoute(ctx, 1, 10); err != nil {
			t.Fatalf("EstimateRoute() error = %v", err)
		}
	}
	if prices.calls != 1 {
		t.Fatalf("expected one price list read, got %d", prices.calls)
	}
	svc.PriceCache().Purge()
	if _, err := svc.LatestPrice(ctx); err != nil {
		t.Fatalf("LatestPrice() error = %v", err)
	}
	if prices.calls != 2 {
		t.Fatalf("expected a reload after purge, got %d reads", prices.calls)
	}
}

func TestCostService_NoPriceList(t *testing.T) {
	store := testStore()
	svc := NewCostService(store, &countingPrices{}, 0)
	est, err := svc.EstimateRoute(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("EstimateRoute() error = %v", err)
	}
	if est.Known || est.Cost != 0 || est.PricePeriod != "" {
		t.Fatalf("expected unknown estimate, got %+v", est)
	}

	failing := NewCostService(store, &countingPrices{err: errors.New("sheet unavailable")}, 0)
	if _, err := failing.EstimateRoute(context.Background(), 1, 10); err == nil {
		t.Fatal("expected price list error")
	}
}
