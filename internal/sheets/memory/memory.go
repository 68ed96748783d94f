package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"roadbook/internal/core"
	ports "roadbook/internal/sheets"
)

var (
	_ ports.TripLister        = (*Store)(nil)
	_ ports.FuelExpenseLister = (*Store)(nil)
	_ ports.CarReader         = (*Store)(nil)
	_ ports.FuelPriceReader   = (*Store)(nil)
	_ ports.TripWriter        = (*Store)(nil)
	_ ports.FuelExpenseWriter = (*Store)(nil)
)

type Store struct {
	mu     sync.Mutex
	cars   []core.Car
	prices []core.FuelPrice
	trips  []core.Trip
	fuel   []core.FuelExpense
	nextID int64
}

func New(cars []core.Car, prices []core.FuelPrice) *Store {
	return &Store{
		cars:   append([]core.Car(nil), cars...),
		prices: append([]core.FuelPrice(nil), prices...),
	}
}

// NewFromFiles seeds cars and prices from seed_cars.txt and
// seed_fuel_prices.txt in base, falling back to a single default car and
// price when the files are missing or empty.
//
// seed_cars.txt lines: id;plate;name;fuel;consumption
// seed_fuel_prices.txt lines: YYYY-MM;petrol;diesel;lpg;electric
func NewFromFiles(base string) *Store {
	var cars []core.Car
	for _, line := range readLines(filepath.Join(base, "seed_cars.txt")) {
		if c, err := parseCarLine(line); err == nil {
			cars = append(cars, c)
		}
	}
	var prices []core.FuelPrice
	for _, line := range readLines(filepath.Join(base, "seed_fuel_prices.txt")) {
		if p, err := parsePriceLine(line); err == nil {
			prices = append(prices, p)
		}
	}
	if len(cars) == 0 {
		cars = []core.Car{{ID: 1, Plate: "AB123CD", Name: "Panda", FuelType: core.Petrol, Consumption: 6.5}}
	}
	if len(prices) == 0 {
		now := time.Now()
		prices = []core.FuelPrice{{Period: core.MonthStart(now), Petrol: 1.85, Diesel: 1.75, LPG: 0.75, Electric: 0.45}}
	}
	return New(cars, prices)
}

func (s *Store) ListTrips(_ context.Context, from, to time.Time) ([]core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Trip
	for _, t := range s.trips {
		if ports.InRange(t.Start, from, to) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) ListFuelExpenses(_ context.Context, from, to time.Time) ([]core.FuelExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.FuelExpense
	for _, e := range s.fuel {
		if ports.InRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetCar(_ context.Context, id int64) (core.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cars {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Car{}, fmt.Errorf("car %d: %w", id, core.ErrUnknownCar)
}

func (s *Store) ListCars(_ context.Context) ([]core.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Car(nil), s.cars...), nil
}

func (s *Store) ListFuelPrices(_ context.Context) ([]core.FuelPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.FuelPrice(nil), s.prices...), nil
}

// CreateTrip stores the trip under a fresh id.
func (s *Store) CreateTrip(_ context.Context, t core.Trip) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCar(t.CarID) {
		return 0, fmt.Errorf("car %d: %w", t.CarID, core.ErrUnknownCar)
	}
	s.nextID++
	t.ID = s.nextID
	s.trips = append(s.trips, t)
	return t.ID, nil
}

// CreateFuelExpense stores the expense under a fresh id.
func (s *Store) CreateFuelExpense(_ context.Context, e core.FuelExpense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCar(e.CarID) {
		return 0, fmt.Errorf("car %d: %w", e.CarID, core.ErrUnknownCar)
	}
	s.nextID++
	e.ID = s.nextID
	s.fuel = append(s.fuel, e)
	return e.ID, nil
}

func (s *Store) hasCar(id int64) bool {
	for _, c := range s.cars {
		if c.ID == id {
			return true
		}
	}
	return false
}

func parseCarLine(line string) (core.Car, error) {
	f := splitFields(line, 5)
	if f == nil {
		return core.Car{}, fmt.Errorf("car line %q: want 5 fields", line)
	}
	id, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return core.Car{}, fmt.Errorf("car id %q: %w", f[0], err)
	}
	cons, err := strconv.ParseFloat(strings.ReplaceAll(f[4], ",", "."), 64)
	if err != nil {
		return core.Car{}, fmt.Errorf("car consumption %q: %w", f[4], err)
	}
	c := core.Car{ID: id, Plate: f[1], Name: f[2], FuelType: core.ParseFuelType(f[3]), Consumption: cons}
	return c, c.Validate()
}

func parsePriceLine(line string) (core.FuelPrice, error) {
	f := splitFields(line, 5)
	if f == nil {
		return core.FuelPrice{}, fmt.Errorf("price line %q: want 5 fields", line)
	}
	period, err := time.Parse("2006-01", f[0])
	if err != nil {
		return core.FuelPrice{}, fmt.Errorf("price period %q: %w", f[0], err)
	}
	vals := make([]float64, 4)
	for i := range vals {
		v, err := strconv.ParseFloat(strings.ReplaceAll(f[i+1], ",", "."), 64)
		if err != nil {
			return core.FuelPrice{}, fmt.Errorf("price %q: %w", f[i+1], err)
		}
		vals[i] = v
	}
	p := core.FuelPrice{Period: period, Petrol: vals[0], Diesel: vals[1], LPG: vals[2], Electric: vals[3]}
	return p, p.Validate()
}

func splitFields(line string, n int) []string {
	f := strings.Split(line, ";")
	if len(f) != n {
		return nil
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	return f
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
