package handler

import (
	"net/http"
	"strconv"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

// listTransactionsHandler returns the session's transactions in store order.
// ?limit=N keeps only the last N, which is what the recent-activity list shows.
func listTransactionsHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		limit, err := parseLimit(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		session, _ := SessionFromContext(ctx)
		txs, err := sessions.Records(session).ListTransactions(ctx)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("records.count", len(txs)))
		writeJSON(w, http.StatusOK, lastN(txs, limit))
	}
}

func createTransactionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var draft domain.TransactionDraft
		if err := decodeBody(r, &draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := draft.Validate(); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("transaction.type", string(draft.Type)),
			attribute.String("transaction.category", draft.Category),
		)

		session, _ := SessionFromContext(ctx)
		m, err := sessions.For(session).Create(ctx, draft)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func deleteTransactionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		id := domain.RecordID(chi.URLParam(r, "id"))
		span.SetAttributes(attribute.String("transaction.id", id.String()))

		session, _ := SessionFromContext(ctx)
		m, err := sessions.For(session).Delete(ctx, id)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// ============================================================
// Assets & liabilities
// ============================================================

func listAssetsLiabilitiesHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/assets-liabilities")
		defer span.End()

		limit, err := parseLimit(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		session, _ := SessionFromContext(ctx)
		als, err := sessions.Records(session).ListAssetsLiabilities(ctx)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("records.count", len(als)))
		writeJSON(w, http.StatusOK, lastN(als, limit))
	}
}

func createAssetLiabilityHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/assets-liabilities")
		defer span.End()

		var draft domain.AssetLiabilityDraft
		if err := decodeBody(r, &draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := draft.Validate(); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("record.type", string(draft.Type)),
			attribute.String("record.category", draft.Category),
		)

		session, _ := SessionFromContext(ctx)
		m, err := sessions.For(session).Create(ctx, draft)
		if err != nil {
			handleSyncError(w, sessions, session, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

// parseLimit reads ?limit. Zero means no limit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &domain.ErrValidation{Field: "limit", Message: "must be a non-negative integer"}
	}
	return n, nil
}

func lastN[T any](records []T, n int) []T {
	if records == nil {
		return []T{}
	}
	if n > 0 && len(records) > n {
		return records[len(records)-n:]
	}
	return records
}
