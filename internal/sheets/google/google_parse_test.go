package google

import (
	"errors"
	"testing"
	"time"

	"roadbook/internal/core"
)

func TestParseTripRow(t *testing.T) {
	row := []any{"4", 2.0, "2024-03-03 08:15", "2024-03-03 09:00", "1200", "1245,5", "", 40.0, "3", "", "work"}
	trip, err := parseTripRow(row, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if trip.ID != 4 || trip.CarID != 2 || trip.LocationID != 3 || trip.Note != "work" {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if trip.Start.Hour() != 8 || trip.End.Hour() != 9 {
		t.Fatalf("unexpected times %v %v", trip.Start, trip.End)
	}
	if trip.Distance != nil || trip.EndOdometer == nil || *trip.EndOdometer != 1245.5 {
		t.Fatalf("unexpected optional fields %+v", trip)
	}
	if got := core.EffectiveDistance(trip); got != 45.5 {
		t.Fatalf("expected odometer distance 45.5, got %v", got)
	}
}

func TestParseTripRowErrors(t *testing.T) {
	cases := []struct {
		name string
		row  []any
	}{
		{"bad id", []any{"x", "1", "2024-03-03"}},
		{"bad date", []any{"1", "1", "03-2024"}},
		{"bad odometer", []any{"1", "1", "2024-03-03", "", "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseTripRow(tc.row, time.UTC); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := parseTripRow([]any{"", " "}, time.UTC); !errors.Is(err, errEmptyRow) {
		t.Fatalf("expected errEmptyRow, got %v", err)
	}
}

func TestParseFuelRow(t *testing.T) {
	e, err := parseFuelRow([]any{"9", "1", "29/02/2024", "32,4", "58,30", "4", "", "full tank"}, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.Amount.Cents != 5830 || e.Quantity != 32.4 || e.TripID == nil || *e.TripID != 4 {
		t.Fatalf("unexpected expense %+v", e)
	}
	if e.Date.Month() != time.February || e.Date.Day() != 29 {
		t.Fatalf("unexpected date %v", e.Date)
	}
}

func TestParseCarAndPriceRows(t *testing.T) {
	c, err := parseCarRow([]any{"1", "AB123CD", "Octavia", "Dízel", "5.1"})
	if err != nil || c.FuelType != core.Diesel || c.Consumption != 5.1 {
		t.Fatalf("unexpected car %+v err=%v", c, err)
	}

	p, err := parsePriceRow([]any{"2024-02", "1.89", "1.79", "", "0.5"})
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	if p.Period.Month() != time.February || p.Diesel != 1.79 || p.LPG != 0 || p.Electric != 0.5 {
		t.Fatalf("unexpected price %+v", p)
	}
}

func TestTripRowRoundTrip(t *testing.T) {
	in := core.Trip{ID: 5, CarID: 1, Start: time.Date(2024, 3, 3, 8, 15, 0, 0, time.UTC), Distance: core.Float(12)}
	out, err := parseTripRow(tripRow(in), time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.Start.Equal(in.Start) || out.Distance == nil || *out.Distance != 12 || !out.End.IsZero() {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
