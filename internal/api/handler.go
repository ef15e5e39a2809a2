package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/settings"
	"github.com/opensource-finance/kestrel/internal/stats"
	"github.com/opensource-finance/kestrel/internal/store"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store    domain.Store
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	stats    *stats.Service
	settings *settings.Registry
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(st domain.Store, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, statsSvc *stats.Service, registry *settings.Registry, version string) *Handler {
	return &Handler{
		store:    st,
		cache:    cache,
		bus:      bus,
		engine:   eng,
		stats:    statsSvc,
		settings: registry,
		version:  version,
	}
}

// Score handles POST /score requests: enhanced single-transaction
// scoring through the full fusion pipeline.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.engine.ScoreOne(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to score transaction",
			"tx_id", req.TransactionID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ScoreLegacy handles POST /score/legacy requests: the step-indexed
// schema scored directly by the classifier, no rule fusion.
func (h *Handler) ScoreLegacy(w http.ResponseWriter, r *http.Request) {
	var req domain.LegacyTransaction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	verdict, err := h.engine.ScoreLegacy(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to score legacy transaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// BatchRequest is the request body for POST /simulation/batch.
type BatchRequest struct {
	Transactions []*domain.TransactionRequest `json:"transactions"`

	// Concurrency overrides the configured batch chunk size.
	Concurrency int `json:"concurrency,omitempty"`
}

// RunBatch handles POST /simulation/batch requests.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions are required",
		})
		return
	}

	summary := h.engine.RunBatch(r.Context(), req.Transactions, req.Concurrency)

	slog.Info("simulation batch completed",
		"simulation_id", summary.SimulationID,
		"total", summary.TotalProcessed,
		"fraudulent", summary.FraudulentCount,
	)
	writeJSON(w, http.StatusOK, summary)
}

// Overlay handles GET /simulation/overlay requests. An optional limit
// query parameter caps the snapshot to the most recent entries.
func (h *Handler) Overlay(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, h.engine.OverlaySnapshot(limit))
}

// ResetOverlay handles DELETE /simulation/overlay requests.
func (h *Handler) ResetOverlay(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetOverlay()

	slog.Info("simulation overlay cleared")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "simulation overlay cleared",
	})
}

// ListTransactions handles GET /transactions requests with optional
// channel, fraud_only and limit query filters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	var filter domain.TransactionFilter
	q := r.URL.Query()
	if raw := q.Get("channel"); raw != "" {
		filter.Channel = domain.NormalizeChannel(raw)
	}
	filter.FraudOnly = q.Get("fraud_only") == "true"
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		filter.Limit = n
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransaction handles GET /transactions/{id} requests.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), txID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListDecisions handles GET /decisions requests, newest first with an
// optional limit.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	decisions, err := h.store.ListRecentDecisions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list decisions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}
	if decisions == nil {
		decisions = []*domain.DecisionResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// GetDecision handles GET /decisions/{id} requests.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	dec, err := h.store.GetDecision(r.Context(), txID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "decision not found",
			})
			return
		}
		slog.Error("failed to get decision", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get decision",
		})
		return
	}

	writeJSON(w, http.StatusOK, dec)
}

// FraudStats handles GET /stats/fraud requests.
func (h *Handler) FraudStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "statistics not available",
		})
		return
	}

	s, err := h.stats.Fraud(r.Context())
	if err != nil {
		slog.Error("failed to compute fraud stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute fraud stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, s)
}

// ChannelStats handles GET /stats/channels requests.
func (h *Handler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "statistics not available",
		})
		return
	}

	s, err := h.stats.Channels(r.Context())
	if err != nil {
		slog.Error("failed to compute channel stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute channel stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channels": s,
	})
}

// HourlyStats handles GET /stats/hourly requests.
func (h *Handler) HourlyStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "statistics not available",
		})
		return
	}

	s, err := h.stats.Hourly(r.Context())
	if err != nil {
		slog.Error("failed to compute hourly stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute hourly stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hours": s,
	})
}

// GetSettings handles GET /settings requests.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "settings not available",
		})
		return
	}

	snap, updated := h.settings.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":     snap,
		"last_updated": updated.UTC().Format(time.RFC3339),
	})
}

// GetSettingsSection handles GET /settings/{section} requests.
func (h *Handler) GetSettingsSection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")

	if h.settings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "settings not available",
		})
		return
	}

	current, err := h.settings.Section(section)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"section":  section,
		"settings": current,
	})
}

// UpdateSettings handles PUT /settings/{section} requests. Fields
// absent from the payload keep their current values.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")

	if h.settings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "settings not available",
		})
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}

	updated, err := h.settings.Update(section, payload)
	if err != nil {
		if errors.Is(err, settings.ErrUnknownSection) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("settings updated", "section", section)
	writeJSON(w, http.StatusOK, map[string]any{
		"section":  section,
		"settings": updated,
	})
}

// Health returns server health status. Any failing backing service
// degrades the status without failing the endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        status,
		"version":       h.version,
		"model_version": h.engine.ModelVersion(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
