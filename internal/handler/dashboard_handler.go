package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Dashboard: GET /v1/dashboard
// ============================================================

func getDashboardHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		session, _ := SessionFromContext(ctx)
		syncer := sessions.For(session)

		// First visit loads the dashboard; afterwards it only changes on mutations
		// or an explicit refresh.
		if !syncer.Status().Loaded {
			span.SetAttributes(attribute.Bool("dashboard.initial_load", true))
			m, err := syncer.Refresh(ctx)
			if err != nil {
				handleSyncError(w, sessions, session, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, m)
			return
		}

		writeJSON(w, http.StatusOK, syncer.Current())
	}
}

func refreshDashboardHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dashboard/refresh")
		defer span.End()

		session, _ := SessionFromContext(ctx)
		m, err := sessions.For(session).Refresh(ctx)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func dashboardStatusHandler(sessions *service.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := SessionFromContext(r.Context())
		status := domain.DashboardStatus{
			SyncStatus: sessions.For(session).Status(),
			Subject:    session.Subject,
			Name:       session.Name,
		}
		if !session.ExpiresAt.IsZero() {
			exp := session.ExpiresAt
			status.ExpiresAt = &exp
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func dashboardStatsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// ============================================================
// Categories: GET /v1/categories
// ============================================================

func categoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.AllCategories())
	}
}

// handleSyncError drops the session when the Record Store rejected its
// token, so the next request starts clean once the UI re-authenticates.
func handleSyncError(w http.ResponseWriter, sessions *service.Sessions, session domain.Session, err error, logger *zap.Logger) {
	var unauthorized *domain.ErrUnauthorized
	if errors.As(err, &unauthorized) {
		sessions.Drop(session)
	}
	handleServiceError(w, err, logger)
}
