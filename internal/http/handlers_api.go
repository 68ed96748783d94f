package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"roadbook/internal/amqp"
	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/log"
	"roadbook/internal/services"
)

// writeServiceError maps domain and validation errors to 4xx and anything
// else to a logged 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case fieldErrors(err) != nil:
		ErrorResponse(http.StatusUnprocessableEntity, "validation failed", fieldErrors(err)).Write(w)
	case errors.Is(err, core.ErrUnknownCar):
		ErrorResponse(http.StatusUnprocessableEntity, err.Error(), map[string]string{"car_id": err.Error()}).Write(w)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrTripEndsEarly),
		errors.Is(err, core.ErrOdometerReverse):
		ErrorResponse(http.StatusUnprocessableEntity, err.Error(), nil).Write(w)
	case errors.Is(err, services.ErrInvalidDistance):
		BadRequestError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		InternalServerError().Write(w)
	}
}

type tripResponse struct {
	ID              int64              `json:"id"`
	CarID           int64              `json:"car_id"`
	Start           string             `json:"start"`
	End             string             `json:"end,omitempty"`
	StartOdometer   *float64           `json:"start_odometer,omitempty"`
	EndOdometer     *float64           `json:"end_odometer,omitempty"`
	Distance        *float64           `json:"distance_km,omitempty"`
	PlannedDistance *float64           `json:"planned_distance_km,omitempty"`
	EffectiveKm     float64            `json:"effective_km"`
	Note            string             `json:"note,omitempty"`
	Estimate        *services.Estimate `json:"estimate,omitempty"`
}

func newTripResponse(t core.Trip) tripResponse {
	resp := tripResponse{
		ID:              t.ID,
		CarID:           t.CarID,
		Start:           t.Start.Format(timeLayout),
		StartOdometer:   t.StartOdometer,
		EndOdometer:     t.EndOdometer,
		Distance:        t.Distance,
		PlannedDistance: t.PlannedDistance,
		EffectiveKm:     core.EffectiveDistance(t),
		Note:            t.Note,
	}
	if !t.End.IsZero() {
		resp.End = t.End.Format(timeLayout)
	}
	return resp
}

type fuelExpenseResponse struct {
	ID       int64   `json:"id"`
	CarID    int64   `json:"car_id"`
	TripID   *int64  `json:"trip_id,omitempty"`
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Amount   string  `json:"amount"`
	Cents    int64   `json:"amount_cents"`
	Note     string  `json:"note,omitempty"`
}

func newFuelExpenseResponse(e core.FuelExpense) fuelExpenseResponse {
	return fuelExpenseResponse{
		ID:       e.ID,
		CarID:    e.CarID,
		TripID:   e.TripID,
		Date:     e.Date.Format(timeLayout),
		Quantity: e.Quantity,
		Amount:   e.Amount.String(),
		Cents:    e.Amount.Cents,
		Note:     e.Note,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	trip, err := req.toTrip(s.deps.Location)
	if err == nil {
		trip, err = s.deps.Records.CreateTrip(r.Context(), trip)
	}
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentRecords).InfoContext(r.Context(), "Trip recorded",
		log.NewFields().
			WithRecord(string(amqp.KindTrip), trip.ID, trip.CarID).
			WithOperation(log.OpCreate).
			ToSlice()...)

	month := calendar.MonthWindow(trip.Start).Key()
	s.markStale(screenTrips, month)
	NewResponse().
		Status(http.StatusCreated).
		TriggerRecordCreated(string(amqp.KindTrip), month).
		JSON(newTripResponse(trip)).
		Write(w)
}

func (s *Server) handleCreateFuelExpense(w http.ResponseWriter, r *http.Request) {
	var req fuelExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	e, err := req.toFuelExpense(s.deps.Location)
	if err == nil {
		e, err = s.deps.Records.CreateFuelExpense(r.Context(), e)
	}
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentRecords).InfoContext(r.Context(), "Fuel expense recorded",
		log.NewFields().
			WithRecord(string(amqp.KindFuelExpense), e.ID, e.CarID).
			WithOperation(log.OpCreate).
			ToSlice()...)

	month := calendar.MonthWindow(e.Date).Key()
	s.markStale(screenRefuels, month)
	NewResponse().
		Status(http.StatusCreated).
		TriggerRecordCreated(string(amqp.KindFuelExpense), month).
		JSON(newFuelExpenseResponse(e)).
		Write(w)
}

// markStale drops the month from the local window cache and refreshes the
// local screen right away; remote replicas learn about the change through
// the published message.
func (s *Server) markStale(screen, month string) {
	switch screen {
	case screenTrips:
		if s.deps.TripWindows != nil {
			s.deps.TripWindows.Invalidate(month)
		}
		s.deps.Trips.MarkStaleMonth(month)
	case screenRefuels:
		if s.deps.RefuelWindows != nil {
			s.deps.RefuelWindows.Invalidate(month)
		}
		s.deps.Refuels.MarkStaleMonth(month)
	}
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	ref, err := parseMonthParam(r, s.deps.Location, s.deps.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx := r.Context()
	window := calendar.MonthWindow(ref)
	trips, err := s.deps.Summaries.Trips(ctx, window)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	out := make([]tripResponse, 0, len(trips))
	for _, t := range trips {
		resp := newTripResponse(t)
		est, err := s.deps.Costs.EstimateTripCost(ctx, t)
		switch {
		case err == nil:
			resp.Estimate = &est
		case errors.Is(err, core.ErrUnknownCar):
		default:
			s.writeServiceError(w, r, log.OpEstimate, err)
			return
		}
		out = append(out, resp)
	}
	NewResponse().JSON(map[string]any{"month": window.Key(), "trips": out}).Write(w)
}

func (s *Server) handleListFuelExpenses(w http.ResponseWriter, r *http.Request) {
	ref, err := parseMonthParam(r, s.deps.Location, s.deps.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	window := calendar.MonthWindow(ref)
	items, err := s.deps.Summaries.FuelExpenses(r.Context(), window)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	out := make([]fuelExpenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, newFuelExpenseResponse(e))
	}
	NewResponse().JSON(map[string]any{"month": window.Key(), "fuel_expenses": out}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ref, err := parseMonthParam(r, s.deps.Location, s.deps.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sum, err := s.deps.Summaries.MonthSummary(r.Context(), ref)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	carID, err := strconv.ParseInt(strings.TrimSpace(q.Get("car_id")), 10, 64)
	if err != nil || carID <= 0 {
		BadRequestError("car_id must be a positive integer").Write(w)
		return
	}
	km, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(q.Get("km")), ",", "."), 64)
	if err != nil {
		BadRequestError("km must be a number").Write(w)
		return
	}
	est, err := s.deps.Costs.EstimateRoute(r.Context(), carID, km)
	if err != nil {
		s.writeServiceError(w, r, log.OpEstimate, err)
		return
	}
	NewResponse().JSON(est).Write(w)
}
