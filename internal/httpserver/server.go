// Package httpserver exposes the controller as a small JSON API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/storefront/internal/app"
	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/platform/httpx"
	"finitefield.org/storefront/internal/platform/observability"
)

const defaultTimeout = 60 * time.Second

// Controller is the application surface served over HTTP.
type Controller interface {
	Dispatch(ctx context.Context, cmd app.Command) app.Outcome
	Actions() []app.Action
	Products() []app.ProductView
	Destinations() []domain.Destination
	State() app.StateView
}

// Config holds runtime options for the HTTP server.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Logger       *zap.Logger
}

// New constructs the HTTP server with the middleware stack and API routes.
func New(cfg Config, ctrl Controller) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      NewRouter(ctrl, cfg.Logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// NewRouter builds the chi router serving ctrl.
func NewRouter(ctrl Controller, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(observability.TraceMiddleware())
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("route_not_found", "no route for "+r.URL.Path, http.StatusNotFound))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", "method "+r.Method+" not allowed on "+r.URL.Path, http.StatusMethodNotAllowed))
	})

	h := &handlers{ctrl: ctrl}
	router.With(chimw.Timeout(defaultTimeout)).Get("/healthz", h.healthz)
	router.Route("/api", func(api chi.Router) {
		api.Use(noStore)
		api.Group(func(reads chi.Router) {
			reads.Use(chimw.Timeout(defaultTimeout))
			reads.Get("/catalog", h.catalog)
			reads.Get("/destinations", h.destinations)
			reads.Get("/state", h.state)
		})
		// Actions are not bounded by the router timeout.
		api.Post("/actions", h.actions)
	})
	return router
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
