package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps groups what the router needs. StoreBreaker is nil when the Record
// Store runs in-process.
type Deps struct {
	Sessions       *service.Sessions
	Auth           *service.SessionAuth
	Metrics        *observability.Metrics
	StoreBreaker   *gobreaker.CircuitBreaker
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.AccessLog(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.StoreBreaker))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/categories", categoriesHandler())

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(d.Auth, d.Logger))

			// Dashboard
			r.Get("/dashboard", getDashboardHandler(d.Sessions, d.Logger))
			r.Post("/dashboard/refresh", refreshDashboardHandler(d.Sessions, d.Logger))
			r.Get("/dashboard/status", dashboardStatusHandler(d.Sessions))
			r.Get("/dashboard/stats", dashboardStatsHandler(d.Metrics))
			r.Get("/dashboard/stream", dashboardStreamHandler(d.Sessions, d.AllowedOrigins, d.Logger))

			// Records
			r.Get("/transactions", listTransactionsHandler(d.Sessions, d.Logger))
			r.Post("/transactions", createTransactionHandler(d.Sessions, d.Logger))
			r.Delete("/transactions/{id}", deleteTransactionHandler(d.Sessions, d.Logger))
			r.Get("/assets-liabilities", listAssetsLiabilitiesHandler(d.Sessions, d.Logger))
			r.Post("/assets-liabilities", createAssetLiabilityHandler(d.Sessions, d.Logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(breaker *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		store := domain.ServiceHealth{Name: "record-store", Status: "healthy", Detail: "in-process", LastChecked: now}
		if breaker != nil {
			state := breaker.State()
			store.Detail = "circuit " + state.String()
			if state != gobreaker.StateClosed {
				store.Status = "degraded"
			}
		}
		services = append(services, store)

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
