package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"roadbook/internal/core"
)

const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// timestampLayouts are tried in order; layouts without a zone are read in
// the server's location.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseTimestamp accepts RFC 3339, a local "YYYY-MM-DDTHH:MM" as sent by
// datetime-local inputs, or a bare date.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// parseMonthParam reads ?month=YYYY-MM. An absent value means now's month.
func parseMonthParam(r *http.Request, loc *time.Location, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation("2006-01", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: want YYYY-MM", v)
	}
	return t, nil
}

// parseDayParam reads a required ?day=YYYY-MM-DD.
func parseDayParam(r *http.Request, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("day"))
	if v == "" {
		v = strings.TrimSpace(r.PostFormValue("day"))
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", v)
	}
	return t, nil
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

type tripRequest struct {
	CarID           int64    `json:"car_id"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	StartOdometer   *float64 `json:"start_odometer"`
	EndOdometer     *float64 `json:"end_odometer"`
	Distance        *float64 `json:"distance_km"`
	PlannedDistance *float64 `json:"planned_distance_km"`
	LocationID      int64    `json:"location_id"`
	PurposeID       int64    `json:"purpose_id"`
	Note            string   `json:"note"`
}

func (req tripRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.CarID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.Start, validation.Required),
		validation.Field(&req.Note, validation.Length(0, 200)),
	)
}

// toTrip converts the request once it passed Validate.
func (req tripRequest) toTrip(loc *time.Location) (core.Trip, error) {
	start, err := parseTimestamp(req.Start, loc)
	if err != nil {
		return core.Trip{}, validation.Errors{"start": err}
	}
	t := core.Trip{
		CarID:           req.CarID,
		LocationID:      req.LocationID,
		PurposeID:       req.PurposeID,
		Start:           start,
		StartOdometer:   req.StartOdometer,
		EndOdometer:     req.EndOdometer,
		Distance:        req.Distance,
		PlannedDistance: req.PlannedDistance,
		Note:            sanitizeInput(req.Note),
	}
	if strings.TrimSpace(req.End) != "" {
		if t.End, err = parseTimestamp(req.End, loc); err != nil {
			return core.Trip{}, validation.Errors{"end": err}
		}
	}
	return t, nil
}

type fuelExpenseRequest struct {
	CarID      int64   `json:"car_id"`
	Date       string  `json:"date"`
	Quantity   float64 `json:"quantity"`
	Amount     string  `json:"amount"`
	TripID     *int64  `json:"trip_id"`
	LocationID int64   `json:"location_id"`
	Note       string  `json:"note"`
}

func (req fuelExpenseRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.CarID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.Date, validation.Required),
		validation.Field(&req.Quantity, validation.Required, validation.Min(0.0)),
		validation.Field(&req.Amount, validation.Required),
		validation.Field(&req.Note, validation.Length(0, 200)),
	)
}

func (req fuelExpenseRequest) toFuelExpense(loc *time.Location) (core.FuelExpense, error) {
	date, err := parseTimestamp(req.Date, loc)
	if err != nil {
		return core.FuelExpense{}, validation.Errors{"date": err}
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.FuelExpense{}, validation.Errors{"amount": err}
	}
	return core.FuelExpense{
		CarID:      req.CarID,
		LocationID: req.LocationID,
		TripID:     req.TripID,
		Date:       date,
		Quantity:   req.Quantity,
		Amount:     core.Money{Cents: cents},
		Note:       sanitizeInput(req.Note),
	}, nil
}

// fieldErrors flattens ozzo validation errors for the JSON error body.
// It returns nil for any other error.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for field, e := range verrs {
		if e != nil {
			out[field] = e.Error()
		}
	}
	return out
}
