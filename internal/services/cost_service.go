package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"roadbook/internal/cache"
	"roadbook/internal/core"
	"roadbook/internal/sheets"
)

var ErrInvalidDistance = errors.New("distance must be a positive number of km")

const priceListKey = "all"

// Estimate is the fuel cost of a distance driven with one car.
type Estimate struct {
	CarID       int64   `json:"car_id"`
	FuelType    string  `json:"fuel_type"`
	DistanceKm  float64 `json:"distance_km"`
	UnitPrice   float64 `json:"unit_price"`
	PricePeriod string  `json:"price_period,omitempty"`
	Cost        float64 `json:"cost"`
	// Known is false when no cost could be computed: no price list, no
	// consumption or no distance.
	Known bool `json:"known"`
}

// CostService estimates fuel costs from the car's consumption and the
// latest fuel price list.
type CostService struct {
	cars   sheets.CarReader
	prices sheets.FuelPriceReader
	cache  *cache.LRUCache[[]core.FuelPrice]
}

// NewCostService caches the price list for ttl; ttl <= 0 disables caching.
func NewCostService(cars sheets.CarReader, prices sheets.FuelPriceReader, ttl time.Duration) *CostService {
	s := &CostService{cars: cars, prices: prices}
	if ttl > 0 {
		s.cache = cache.NewLRUCache[[]core.FuelPrice](1, ttl)
	}
	return s
}

// PriceCache exposes the price list cache for registration with a
// cache.Manager. It is nil when caching is disabled.
func (s *CostService) PriceCache() *cache.LRUCache[[]core.FuelPrice] {
	return s.cache
}

// LatestPrice returns the most recent price list entry, or nil when the
// list is empty.
func (s *CostService) LatestPrice(ctx context.Context) (*core.FuelPrice, error) {
	if s.cache != nil {
		if prices, ok := s.cache.Get(priceListKey); ok {
			return core.SelectLatestPrice(prices), nil
		}
	}
	prices, err := s.prices.ListFuelPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fuel prices: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(priceListKey, prices)
	}
	return core.SelectLatestPrice(prices), nil
}

// EstimateTripCost prices the effective distance of t.
func (s *CostService) EstimateTripCost(ctx context.Context, t core.Trip) (Estimate, error) {
	return s.estimate(ctx, t.CarID, core.EffectiveDistance(t))
}

// EstimateRoute prices a planned route of km kilometres. km must be a
// positive finite number.
func (s *CostService) EstimateRoute(ctx context.Context, carID int64, km float64) (Estimate, error) {
	if !(km > 0) || math.IsInf(km, 0) {
		return Estimate{}, ErrInvalidDistance
	}
	return s.estimate(ctx, carID, km)
}

func (s *CostService) estimate(ctx context.Context, carID int64, km float64) (Estimate, error) {
	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return Estimate{}, err
	}
	price, err := s.LatestPrice(ctx)
	if err != nil {
		return Estimate{}, err
	}
	return Price(car, price, km), nil
}

// Price computes the estimate for car over km with price (may be nil).
func Price(car core.Car, price *core.FuelPrice, km float64) Estimate {
	est := Estimate{CarID: car.ID, FuelType: string(car.FuelType), DistanceKm: km}
	if price != nil {
		est.UnitPrice = price.UnitPrice(car.FuelType)
		est.PricePeriod = price.Period.Format("2006-01")
	}
	est.Cost, est.Known = core.EstimateFuelCost(km, &car, price)
	return est
}
