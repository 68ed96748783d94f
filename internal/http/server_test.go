package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"roadbook/internal/amqp"
	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/log"
	"roadbook/internal/middleware/ratelimit"
	"roadbook/internal/services"
	"roadbook/internal/sheets/memory"
)

var testNow = time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *memory.Store
	server *Server
	trips  *calendar.Screen[core.Trip]
}

func newTestEnv(t *testing.T, tweak func(*Deps)) *testEnv {
	t.Helper()
	store := memory.New(
		[]core.Car{{ID: 1, Plate: "AB123CD", Name: "Panda", FuelType: core.Diesel, Consumption: 5}},
		[]core.FuelPrice{{Period: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Diesel: 2.0}},
	)
	tripFetcher := services.TripFetcher(store)
	fuelFetcher := services.FuelExpenseFetcher(store)
	costs := services.NewCostService(store, store, 0)

	deps := Deps{
		Trips:        calendar.NewScreen(screenTrips, tripFetcher, calendar.TripStart, testNow),
		Refuels:      calendar.NewScreen(screenRefuels, fuelFetcher, calendar.FuelExpenseDate, testNow),
		Records:      services.NewRecordService(store, nil),
		Costs:        costs,
		Summaries:    services.NewSummaryService(tripFetcher, fuelFetcher, store, costs),
		Cars:         store,
		Logger:       log.New(log.Config{Output: io.Discard}),
		Location:     time.UTC,
		FirstWeekday: time.Monday,
		Now:          func() time.Time { return testNow },
	}
	if tweak != nil {
		tweak(&deps)
	}
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{store: store, server: srv, trips: deps.Trips}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db down") }
	})

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}

	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestScreenRendersMonth(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateTrip(context.Background(), core.Trip{CarID: 1, Start: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), Distance: core.Float(100)}); err != nil {
		t.Fatalf("create trip: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/trips", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /trips = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"February 2024", "100.0 km", "/trips/select?day=2024-02-29", `class="blank"`, "<th scope=\"col\">Mon</th>"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "2024-02-30") {
		t.Error("February 2024 has no day 30")
	}

	if rec := env.do(t, http.MethodGet, "/refuels", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET /refuels = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/boats", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /boats = %d, want 404", rec.Code)
	}
}

func TestNavigation(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateTrip(context.Background(), core.Trip{CarID: 1, Start: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), Distance: core.Float(100), Note: "airport"}); err != nil {
		t.Fatalf("create trip: %v", err)
	}

	steps := []struct {
		name     string
		target   string
		form     string
		status   int
		wantPage string
	}{
		{"next month", "/trips/next", "", http.StatusSeeOther, "March 2024"},
		{"previous month", "/trips/prev", "", http.StatusSeeOther, "February 2024"},
		{"select day", "/trips/select?day=2024-02-01", "", http.StatusSeeOther, "Thursday, 1 February 2024"},
		{"return", "/trips/return", "", http.StatusSeeOther, "month-grid"},
		{"jump", "/trips/jump", url.Values{"month": {"2023-12"}}.Encode(), http.StatusSeeOther, "December 2023"},
		{"today", "/trips/today", "", http.StatusSeeOther, "February 2024"},
		{"day outside month", "/trips/select?day=2024-03-01", "", http.StatusBadRequest, ""},
		{"bad day", "/trips/select?day=tomorrow", "", http.StatusBadRequest, ""},
		{"bad jump", "/trips/jump?month=2024-13", "", http.StatusBadRequest, ""},
		{"unknown action", "/trips/sideways", "", http.StatusNotFound, ""},
	}
	for _, st := range steps {
		rec := env.do(t, http.MethodPost, st.target, st.form)
		if rec.Code != st.status {
			t.Fatalf("%s: POST %s = %d, want %d", st.name, st.target, rec.Code, st.status)
		}
		if st.wantPage == "" {
			continue
		}
		if loc := rec.Header().Get("Location"); loc != "/trips" {
			t.Fatalf("%s: Location = %q", st.name, loc)
		}
		page := env.do(t, http.MethodGet, "/trips", "").Body.String()
		if !strings.Contains(page, st.wantPage) {
			t.Fatalf("%s: page does not contain %q", st.name, st.wantPage)
		}
	}
}

func TestDayDetailShowsEstimate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.store.CreateTrip(ctx, core.Trip{CarID: 1, Start: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), Distance: core.Float(100), Note: "<b>airport</b>"}); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	env.trips.SelectDay(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	body := env.do(t, http.MethodGet, "/trips", "").Body.String()
	// 100 km at 5 l/100km and 2.0 per litre.
	if !strings.Contains(body, "10,00") || !strings.Contains(body, "Panda (AB123CD)") {
		t.Fatalf("detail missing estimate or car: %s", body)
	}
	if strings.Contains(body, "<b>airport</b>") {
		t.Fatal("notes must be escaped")
	}
}

func TestCreateTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	// Load February so the write has something to invalidate.
	env.do(t, http.MethodGet, "/trips", "")

	rec := env.do(t, http.MethodPost, "/api/trips", `{"car_id":1,"start":"2024-02-10T08:30","start_odometer":1000,"end_odometer":1042,"note":"depot"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/trips = %d %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["id"].(float64) == 0 || got["effective_km"].(float64) != 42 {
		t.Fatalf("unexpected trip %v", got)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"month":"2024-02"`) {
		t.Fatalf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}

	if page := env.do(t, http.MethodGet, "/trips", "").Body.String(); !strings.Contains(page, "42.0 km") {
		t.Fatal("new trip should show on the refreshed calendar")
	}

	list := decode(t, env.do(t, http.MethodGet, "/api/trips?month=2024-02", ""))
	trips := list["trips"].([]any)
	if len(trips) != 1 {
		t.Fatalf("expected one trip, got %v", list)
	}
	est := trips[0].(map[string]any)["estimate"].(map[string]any)
	if est["known"] != true || est["cost"].(float64) < 4.19 || est["cost"].(float64) > 4.21 {
		t.Fatalf("unexpected estimate %v", est)
	}
}

func TestCreateTripDropsCachedWindow(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		store := d.Cars.(*memory.Store)
		windows := calendar.NewCachedFetcher[core.Trip]("trips", services.TripFetcher(store), 4, time.Minute)
		d.Trips = calendar.NewScreen[core.Trip](screenTrips, windows, calendar.TripStart, testNow)
		d.TripWindows = windows
		// Change messages go nowhere, as when the broker is slow.
		d.Records = services.NewRecordService(store, services.PublisherFunc(func(context.Context, *amqp.RecordChangedMessage) error {
			return nil
		}))
	})
	if page := env.do(t, http.MethodGet, "/trips", "").Body.String(); strings.Contains(page, "42.0 km") {
		t.Fatal("calendar should start empty")
	}

	rec := env.do(t, http.MethodPost, "/api/trips", `{"car_id":1,"start":"2024-02-10T08:30","distance_km":42}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/trips = %d %s", rec.Code, rec.Body.String())
	}
	if page := env.do(t, http.MethodGet, "/trips", "").Body.String(); !strings.Contains(page, "42.0 km") {
		t.Fatal("new trip should show although the month was cached")
	}
	if snap := env.trips.Snapshot(); !snap.Loaded || snap.Buckets.Len() != 1 {
		t.Fatalf("unexpected snapshot after re-render: loaded=%v len=%d", snap.Loaded, snap.Buckets.Len())
	}
}

func TestCreateTripErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"missing car", `{"start":"2024-02-10"}`, http.StatusUnprocessableEntity, "car_id"},
		{"bad start", `{"car_id":1,"start":"yesterday"}`, http.StatusUnprocessableEntity, "start"},
		{"unknown car", `{"car_id":9,"start":"2024-02-10"}`, http.StatusUnprocessableEntity, "car_id"},
		{"ends early", `{"car_id":1,"start":"2024-02-10T10:00","end":"2024-02-10T09:00"}`, http.StatusUnprocessableEntity, ""},
		{"odometer reverse", `{"car_id":1,"start":"2024-02-10","start_odometer":10,"end_odometer":5}`, http.StatusUnprocessableEntity, ""},
		{"unknown field", `{"car_id":1,"start":"2024-02-10","boat":true}`, http.StatusBadRequest, ""},
		{"not json", `{car`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/trips", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.field == "" {
				return
			}
			fields, _ := decode(t, rec)["fields"].(map[string]any)
			if _, ok := fields[tt.field]; !ok {
				t.Fatalf("expected error on %s, got %s", tt.field, rec.Body.String())
			}
		})
	}
}

func TestCreateFuelExpense(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/fuel-expenses", `{"car_id":1,"date":"2024-02-29T18:00:00Z","quantity":30.5,"amount":"54,20"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/fuel-expenses = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec); got["amount_cents"].(float64) != 5420 || got["amount"] != "54,20" {
		t.Fatalf("unexpected expense %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/fuel-expenses", `{"car_id":1,"date":"2024-02-29","quantity":30,"amount":"0"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero amount = %d, want 422", rec.Code)
	}

	list := decode(t, env.do(t, http.MethodGet, "/api/fuel-expenses?month=2024-02", ""))
	if items := list["fuel_expenses"].([]any); len(items) != 1 {
		t.Fatalf("expected one expense, got %v", list)
	}
	if page := env.do(t, http.MethodGet, "/refuels", "").Body.String(); !strings.Contains(page, "54,20") {
		t.Fatal("refuel calendar should show the day's spend")
	}
}

func TestSummaryAndEstimate(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateTrip(context.Background(), core.Trip{CarID: 1, Start: time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC), Distance: core.Float(50)}); err != nil {
		t.Fatalf("create trip: %v", err)
	}

	sum := decode(t, env.do(t, http.MethodGet, "/api/summary?month=2024-02", ""))
	if days := sum["days"].([]any); len(days) != 29 || sum["distance_km"].(float64) != 50 {
		t.Fatalf("unexpected summary %v", sum)
	}
	if rec := env.do(t, http.MethodGet, "/api/summary?month=feb", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month = %d, want 400", rec.Code)
	}

	tests := []struct {
		query  string
		status int
	}{
		{"car_id=1&km=100", http.StatusOK},
		{"car_id=1&km=12,5", http.StatusOK},
		{"car_id=1&km=-1", http.StatusBadRequest},
		{"car_id=1&km=NaN", http.StatusBadRequest},
		{"car_id=1&km=Inf", http.StatusBadRequest},
		{"car_id=1&km=-Inf", http.StatusBadRequest},
		{"car_id=x&km=1", http.StatusBadRequest},
		{"car_id=1&km=far", http.StatusBadRequest},
		{"car_id=7&km=10", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/api/estimate?"+tt.query, "")
		if rec.Code != tt.status {
			t.Errorf("estimate %s = %d, want %d", tt.query, rec.Code, tt.status)
		}
	}
	est := decode(t, env.do(t, http.MethodGet, "/api/estimate?car_id=1&km=100", ""))
	if est["cost"].(float64) != 10 || est["price_period"] != "2024-02" {
		t.Fatalf("unexpected estimate %v", est)
	}
}

func TestWriteEndpointsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = ratelimit.Config{Requests: 2, Period: time.Minute}
	})
	for i, want := range []int{http.StatusSeeOther, http.StatusSeeOther, http.StatusTooManyRequests} {
		if rec := env.do(t, http.MethodPost, "/trips/next", ""); rec.Code != want {
			t.Fatalf("request %d = %d, want %d", i+1, rec.Code, want)
		}
	}
	if rec := env.do(t, http.MethodGet, "/trips", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rec.Code)
	}
}

func TestWeekdayNames(t *testing.T) {
	got := strings.Join(weekdayNames(time.Sunday), ",")
	if got != "Sun,Mon,Tue,Wed,Thu,Fri,Sat" {
		t.Fatalf("weekdayNames(Sunday) = %s", got)
	}
	if weekdayNames(time.Monday)[6] != "Sun" {
		t.Fatal("Monday-first weeks end on Sunday")
	}
}
