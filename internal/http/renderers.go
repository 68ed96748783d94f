package http

import (
	"bytes"
	"html/template"
	"log/slog"
	"strconv"
	"time"

	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/services"
)

// fragment executes a named template into HTML. Errors are logged and
// rendered as an empty fragment so one bad cell does not break the page.
func fragment(tpl *template.Template, name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template fragment failed", "template", name, "error", err)
		return ""
	}
	return template.HTML(buf.String())
}

type cellData struct {
	Screen         string
	Day            int
	ISO            string
	IsToday        bool
	IsCurrentMonth bool
	Count          int
	Summary        string
}

// tripRenderer renders trip cells and details. cars and price are loaded
// once per request; estimates are empty when either is missing.
type tripRenderer struct {
	tpl   *template.Template
	cars  map[int64]core.Car
	price *core.FuelPrice
}

var _ calendar.Renderer[core.Trip, template.HTML] = (*tripRenderer)(nil)

func (r *tripRenderer) RenderCell(day time.Time, items []core.Trip, isToday, isCurrentMonth bool) template.HTML {
	var km float64
	for _, t := range items {
		km += core.EffectiveDistance(t)
	}
	data := cellData{
		Screen:         screenTrips,
		Day:            day.Day(),
		ISO:            day.Format(time.DateOnly),
		IsToday:        isToday,
		IsCurrentMonth: isCurrentMonth,
		Count:          len(items),
	}
	if len(items) > 0 {
		data.Summary = formatKm(km)
	}
	return fragment(r.tpl, "day_cell", data)
}

type tripRow struct {
	Start    string
	End      string
	Car      string
	Distance string
	Cost     string
	Note     string
}

func (r *tripRenderer) RenderDetail(day time.Time, items []core.Trip) template.HTML {
	rows := make([]tripRow, 0, len(items))
	var totalKm, totalCost float64
	for _, t := range items {
		km := core.EffectiveDistance(t)
		row := tripRow{
			Start:    t.Start.Format("15:04"),
			Car:      carLabel(r.cars, t.CarID),
			Distance: formatKm(km),
			Note:     t.Note,
		}
		if !t.End.IsZero() {
			row.End = t.End.Format("15:04")
		}
		if car, ok := r.cars[t.CarID]; ok {
			if est := services.Price(car, r.price, km); est.Known {
				row.Cost = formatCost(est.Cost)
				totalCost += est.Cost
			}
		}
		totalKm += km
		rows = append(rows, row)
	}
	return fragment(r.tpl, "trip_detail", map[string]any{
		"Date":      day.Format("Monday, 2 January 2006"),
		"Rows":      rows,
		"TotalKm":   formatKm(totalKm),
		"TotalCost": formatCost(totalCost),
	})
}

// fuelRenderer renders refuel cells and details.
type fuelRenderer struct {
	tpl  *template.Template
	cars map[int64]core.Car
}

var _ calendar.Renderer[core.FuelExpense, template.HTML] = (*fuelRenderer)(nil)

func (r *fuelRenderer) RenderCell(day time.Time, items []core.FuelExpense, isToday, isCurrentMonth bool) template.HTML {
	var spend core.Money
	for _, e := range items {
		spend.Cents += e.Amount.Cents
	}
	data := cellData{
		Screen:         screenRefuels,
		Day:            day.Day(),
		ISO:            day.Format(time.DateOnly),
		IsToday:        isToday,
		IsCurrentMonth: isCurrentMonth,
		Count:          len(items),
	}
	if len(items) > 0 {
		data.Summary = spend.String()
	}
	return fragment(r.tpl, "day_cell", data)
}

type fuelRow struct {
	Time      string
	Car       string
	Quantity  string
	Amount    string
	UnitPrice string
	Note      string
}

func (r *fuelRenderer) RenderDetail(day time.Time, items []core.FuelExpense) template.HTML {
	rows := make([]fuelRow, 0, len(items))
	var total core.Money
	var qty float64
	for _, e := range items {
		row := fuelRow{
			Time:     e.Date.Format("15:04"),
			Car:      carLabel(r.cars, e.CarID),
			Quantity: strconv.FormatFloat(e.Quantity, 'f', 2, 64),
			Amount:   e.Amount.String(),
			Note:     e.Note,
		}
		if e.Quantity > 0 {
			row.UnitPrice = strconv.FormatFloat(e.Amount.Major()/e.Quantity, 'f', 3, 64)
		}
		total.Cents += e.Amount.Cents
		qty += e.Quantity
		rows = append(rows, row)
	}
	return fragment(r.tpl, "fuel_detail", map[string]any{
		"Date":     day.Format("Monday, 2 January 2006"),
		"Rows":     rows,
		"Total":    total.String(),
		"Quantity": strconv.FormatFloat(qty, 'f', 2, 64),
	})
}

func carLabel(cars map[int64]core.Car, id int64) string {
	if c, ok := cars[id]; ok {
		if c.Name != "" {
			return c.Name + " (" + c.Plate + ")"
		}
		return c.Plate
	}
	return "#" + strconv.FormatInt(id, 10)
}

func formatKm(km float64) string {
	return strconv.FormatFloat(km, 'f', 1, 64) + " km"
}

// formatCost renders an estimated cost with a comma separator like
// core.Money does.
func formatCost(v float64) string {
	return core.Money{Cents: int64(v*100 + 0.5)}.String()
}
