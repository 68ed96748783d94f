package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"roadbook/internal/core"
)

var errEmptyRow = errors.New("empty row")

// Column layouts of the four tabs. The first row of every tab is a header.
//
//	Trips:      ID | CarID | Start | End | StartOdo | EndOdo | Distance | Planned | LocationID | PurposeID | Note
//	Fuel:       ID | CarID | Date | Quantity | Amount | TripID | LocationID | Note
//	Cars:       ID | Plate | Name | Fuel | Consumption
//	FuelPrices: Period (YYYY-MM) | Petrol | Diesel | LPG | Electric
const (
	tripCols  = 11
	fuelCols  = 8
	carCols   = 5
	priceCols = 5
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseTripRow(row []any, loc *time.Location) (core.Trip, error) {
	cols := padded(row, tripCols)
	if isBlank(cols) {
		return core.Trip{}, errEmptyRow
	}
	var t core.Trip
	var err error
	if t.ID, err = parseID(cols[0]); err != nil {
		return t, fmt.Errorf("id: %w", err)
	}
	if t.CarID, err = parseID(cols[1]); err != nil {
		return t, fmt.Errorf("car id: %w", err)
	}
	if t.Start, err = parseDate(cols[2], loc); err != nil {
		return t, fmt.Errorf("start: %w", err)
	}
	if cols[3] != "" {
		if t.End, err = parseDate(cols[3], loc); err != nil {
			return t, fmt.Errorf("end: %w", err)
		}
	}
	for i, dst := range []**float64{&t.StartOdometer, &t.EndOdometer, &t.Distance, &t.PlannedDistance} {
		if *dst, err = parseOptionalFloat(cols[4+i]); err != nil {
			return t, fmt.Errorf("column %d: %w", 5+i, err)
		}
	}
	t.LocationID, _ = parseOptionalID(cols[8])
	t.PurposeID, _ = parseOptionalID(cols[9])
	t.Note = cols[10]
	return t, nil
}

func parseFuelRow(row []any, loc *time.Location) (core.FuelExpense, error) {
	cols := padded(row, fuelCols)
	if isBlank(cols) {
		return core.FuelExpense{}, errEmptyRow
	}
	var e core.FuelExpense
	var err error
	if e.ID, err = parseID(cols[0]); err != nil {
		return e, fmt.Errorf("id: %w", err)
	}
	if e.CarID, err = parseID(cols[1]); err != nil {
		return e, fmt.Errorf("car id: %w", err)
	}
	if e.Date, err = parseDate(cols[2], loc); err != nil {
		return e, fmt.Errorf("date: %w", err)
	}
	if e.Quantity, err = parseFloat(cols[3]); err != nil {
		return e, fmt.Errorf("quantity: %w", err)
	}
	cents, err := core.ParseDecimalToCents(cols[4])
	if err != nil {
		return e, fmt.Errorf("amount: %w", err)
	}
	e.Amount = core.Money{Cents: cents}
	if cols[5] != "" {
		id, err := parseID(cols[5])
		if err != nil {
			return e, fmt.Errorf("trip id: %w", err)
		}
		e.TripID = &id
	}
	e.LocationID, _ = parseOptionalID(cols[6])
	e.Note = cols[7]
	return e, nil
}

func parseCarRow(row []any) (core.Car, error) {
	cols := padded(row, carCols)
	if isBlank(cols) {
		return core.Car{}, errEmptyRow
	}
	id, err := parseID(cols[0])
	if err != nil {
		return core.Car{}, fmt.Errorf("id: %w", err)
	}
	cons, err := parseFloat(cols[4])
	if err != nil {
		return core.Car{}, fmt.Errorf("consumption: %w", err)
	}
	return core.Car{
		ID:          id,
		Plate:       cols[1],
		Name:        cols[2],
		FuelType:    core.ParseFuelType(cols[3]),
		Consumption: cons,
	}, nil
}

func parsePriceRow(row []any) (core.FuelPrice, error) {
	cols := padded(row, priceCols)
	if isBlank(cols) {
		return core.FuelPrice{}, errEmptyRow
	}
	period, err := time.Parse("2006-01", cols[0])
	if err != nil {
		return core.FuelPrice{}, fmt.Errorf("period: %w", err)
	}
	p := core.FuelPrice{Period: period}
	for i, dst := range []*float64{&p.Petrol, &p.Diesel, &p.LPG, &p.Electric} {
		if cols[1+i] == "" {
			continue
		}
		if *dst, err = parseFloat(cols[1+i]); err != nil {
			return p, fmt.Errorf("column %d: %w", 2+i, err)
		}
	}
	return p, nil
}

func tripRow(t core.Trip) []any {
	end := ""
	if !t.End.IsZero() {
		end = t.End.Format("2006-01-02 15:04")
	}
	return []any{
		t.ID, t.CarID, t.Start.Format("2006-01-02 15:04"), end,
		optional(t.StartOdometer), optional(t.EndOdometer), optional(t.Distance), optional(t.PlannedDistance),
		t.LocationID, t.PurposeID, t.Note,
	}
}

func fuelRow(e core.FuelExpense) []any {
	trip := any("")
	if e.TripID != nil {
		trip = *e.TripID
	}
	return []any{
		e.ID, e.CarID, e.Date.Format("2006-01-02 15:04"), e.Quantity, e.Amount.Major(),
		trip, e.LocationID, e.Note,
	}
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func padded(row []any, n int) []string {
	out := make([]string, n)
	for i := 0; i < n && i < len(row); i++ {
		out[i] = strings.TrimSpace(fmt.Sprint(row[i]))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func parseID(s string) (int64, error) {
	// Sheets renders numbers like 12 as "12" but computed cells may be "12.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 || f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int64(f), nil
}

func parseOptionalID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return parseID(s)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
