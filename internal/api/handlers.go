package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/wildberries-parser/internal/database"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

// Reader is the read side of the product repository.
type Reader interface {
	GetProduct(ctx context.Context, wbID int64) (*database.StoredProduct, error)
	ListPrices(ctx context.Context, productID int64, limit int) ([]database.PricePoint, error)
	LatestStocks(ctx context.Context, productID int64) ([]database.StockLevel, error)
	ListFeedbacks(ctx context.Context, productID int64, limit int) ([]database.StoredFeedback, error)
	Stats(ctx context.Context) (*database.Stats, error)
}

type Handlers struct {
	reader Reader
	logger *slog.Logger
}

func NewHandlers(reader Reader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		reader: reader,
		logger: logger.With("component", "api"),
	}
}

// Health reports the outbox backlog. A large dead letter count makes the
// service unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", "error", err)
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "error",
			"message": "database unavailable",
		})
		return
	}

	health := map[string]any{
		"status": "ok",
		"outbox": map[string]any{
			"pending":     stats.PendingEvents,
			"dead_letter": stats.DeadLetters,
		},
	}

	status := http.StatusOK
	if stats.PendingEvents > pendingWarnThreshold {
		health["status"] = "warning"
		health["message"] = "High number of pending outbox events"
	}
	if stats.DeadLetters > deadLetterFailThreshold {
		health["status"] = "error"
		health["message"] = "High number of dead letter events"
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetPrices(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	prices, err := h.reader.ListPrices(r.Context(), p.ID, limit)
	if err != nil {
		h.logger.Error("Failed to list prices", "wb_id", p.WBID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}

	h.respondJSON(w, http.StatusOK, prices)
}

func (h *Handlers) GetStocks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	stocks, err := h.reader.LatestStocks(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("Failed to list stocks", "wb_id", p.WBID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list stocks")
		return
	}

	h.respondJSON(w, http.StatusOK, stocks)
}

func (h *Handlers) GetFeedbacks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	feedbacks, err := h.reader.ListFeedbacks(r.Context(), p.ID, limit)
	if err != nil {
		h.logger.Error("Failed to list feedbacks", "wb_id", p.WBID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list feedbacks")
		return
	}

	h.respondJSON(w, http.StatusOK, feedbacks)
}

// loadProduct resolves the {wbID} path parameter. It writes the error
// response itself and reports false when the handler should stop.
func (h *Handlers) loadProduct(w http.ResponseWriter, r *http.Request) (*database.StoredProduct, bool) {
	wbID, err := strconv.ParseInt(chi.URLParam(r, "wbID"), 10, 64)
	if err != nil || wbID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return nil, false
	}

	p, err := h.reader.GetProduct(r.Context(), wbID)
	if err != nil {
		h.logger.Error("Failed to get product", "wb_id", wbID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return nil, false
	}
	if p == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return nil, false
	}

	return p, true
}

func (h *Handlers) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return min(limit, maxLimit), true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
