// Package http serves the trip and refuel calendars and the JSON API.
package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/log"
	"roadbook/internal/middleware/ratelimit"
	"roadbook/internal/middleware/security"
	"roadbook/internal/middleware/trace"
	"roadbook/internal/services"
	"roadbook/internal/sheets"
	appweb "roadbook/web"
)

const (
	screenTrips   = "trips"
	screenRefuels = "refuels"
)

// WindowInvalidator drops one cached month window, keyed like "2024-02".
type WindowInvalidator interface {
	Invalidate(month string)
}

// Deps are the collaborators the server needs. Trips and Refuels are the
// two calendar screens; the server is their only writer.
type Deps struct {
	Trips     *calendar.Screen[core.Trip]
	Refuels   *calendar.Screen[core.FuelExpense]
	Records   *services.RecordService
	Costs     *services.CostService
	Summaries *services.SummaryService
	Cars      sheets.CarReader
	// TripWindows and RefuelWindows are the caches behind the screens'
	// fetchers, if any. A create drops the month from them before the
	// screen refetches.
	TripWindows   WindowInvalidator
	RefuelWindows WindowInvalidator

	Logger       *log.Logger
	Location     *time.Location
	FirstWeekday time.Weekday
	// Now defaults to time.Now.
	Now func() time.Time
	// Ready reports whether the backend is reachable. Nil means always ready.
	Ready func(context.Context) error
	// RateLimit configures the limiter on write endpoints.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	deps      Deps
	templates *template.Template
	pages     map[string]page
	tracer    *trace.Middleware
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}

	tpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:      deps,
		templates: tpl,
		tracer:    trace.NewMiddleware(),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
	}
	s.pages = map[string]page{
		screenTrips: &screenPage[core.Trip]{
			name:   screenTrips,
			title:  "Trips",
			screen: deps.Trips,
			renderer: func(ctx context.Context) (calendar.Renderer[core.Trip, template.HTML], error) {
				cars, err := s.carIndex(ctx)
				if err != nil {
					return nil, err
				}
				price, err := deps.Costs.LatestPrice(ctx)
				if err != nil {
					return nil, err
				}
				return &tripRenderer{tpl: tpl, cars: cars, price: price}, nil
			},
		},
		screenRefuels: &screenPage[core.FuelExpense]{
			name:   screenRefuels,
			title:  "Refuels",
			screen: deps.Refuels,
			renderer: func(ctx context.Context) (calendar.Renderer[core.FuelExpense, template.HTML], error) {
				cars, err := s.carIndex(ctx)
				if err != nil {
					return nil, err
				}
				return &fuelRenderer{tpl: tpl, cars: cars}, nil
			},
		},
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.tracer.Handler)
	r.Use(log.Middleware(s.deps.Logger, trace.RequestID))
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticAssets(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.deps.Logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/"+screenTrips, http.StatusFound)
	})

	r.Get("/{screen}", s.handleScreen)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(security.ClientIP))

		r.Post("/{screen}/{action}", s.handleNavigate)
		r.Post("/api/trips", s.handleCreateTrip)
		r.Post("/api/fuel-expenses", s.handleCreateFuelExpense)
	})

	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/estimate", s.handleEstimate)
	r.Get("/api/trips", s.handleListTrips)
	r.Get("/api/fuel-expenses", s.handleListFuelExpenses)
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":   "ok",
		"requests": s.tracer.Metrics(),
		"rate_limit": map[string]int64{
			"active_clients": int64(s.limiter.ActiveClients()),
			"rejected":       s.limiter.Rejected(),
		},
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "backend unavailable", nil).Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) carIndex(ctx context.Context) (map[int64]core.Car, error) {
	cars, err := s.deps.Cars.ListCars(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]core.Car, len(cars))
	for _, c := range cars {
		out[c.ID] = c
	}
	return out, nil
}
