// Package api serves the dashboard JSON API, the Stripe webhook and the
// operational endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/billing"
	"github.com/lox/siteweather/internal/checker"
	"github.com/lox/siteweather/internal/metrics"
	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
)

// Checker runs a manual weather check for one user.
type Checker interface {
	CheckUser(ctx context.Context, userID string, now time.Time, force bool) (checker.Report, error)
}

// Mailer sends the admin test email.
type Mailer interface {
	SendTest(ctx context.Context, to string) error
}

// Billing is the subset of the Stripe service the API calls.
type Billing interface {
	CreateCheckout(ctx context.Context, userID, email string, plan billing.Plan, cycle billing.Cycle) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
}

type Config struct {
	Addr      string
	JWTSecret string
	Defaults  settings.WeatherSettings
}

type Server struct {
	cfg      Config
	store    *store.Store
	checker  Checker
	mailer   Mailer
	billing  Billing
	validate *validator.Validate
	now      func() time.Time

	// profiles holds user IDs whose profile is known to exist.
	profiles sync.Map
}

func NewServer(cfg Config, st *store.Store, ch Checker, mailer Mailer, bill Billing) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		checker:  ch,
		mailer:   mailer,
		billing:  bill,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/billing/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/api/billing/checkout", s.handleCheckout)

		r.Route("/api/consolidated", func(r chi.Router) {
			r.Get("/settings/weather", s.handleGetSettings)
			r.Put("/settings/weather", s.handlePutSettings)

			r.Get("/jobsites", s.handleListJobsites)
			r.Post("/jobsites", s.handleCreateJobsite)
			r.Get("/jobsites/{id}/weather-settings", s.handleGetJobsiteSettings)
			r.Put("/jobsites/{id}/weather-settings", s.handlePutJobsiteSettings)

			r.Get("/clients", s.handleListClients)
			r.Post("/clients", s.handleCreateClient)
			r.Get("/workers", s.handleListWorkers)
			r.Post("/workers", s.handleCreateWorker)
			r.Get("/locations", s.handleListLocations)

			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handlePutProfile)
			r.Get("/notifications", s.handleListNotifications)
			r.Get("/billing-history", s.handleListBillingHistory)

			r.Get("/subscription", s.handleGetSubscription)
			r.Post("/test-email", s.handleTestEmail)
			r.Post("/weather-check", s.handleWeatherCheck)
		})
	})
	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	zap.S().Infow("api: listening", "addr", s.cfg.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		zap.S().Errorw("api: health check", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"time":   s.now().UTC(),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		zap.S().Debugw("api: request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
