package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/position"
)

// Trader is the manual-sell entry point, implemented by the sniper
// orchestrator.
type Trader interface {
	ManualSell(ctx context.Context, mint string) error
}

// PriceReader serves the last observed price per mint, implemented by the
// redis price cache the sell monitor writes to.
type PriceReader interface {
	GetPrice(ctx context.Context, mint string) (float64, time.Time, error)
}

// PositionHandler serves position queries and the manual-sell endpoint.
type PositionHandler struct {
	store  *position.Store
	trader Trader
	prices PriceReader
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler. trader may be nil when the
// bot runs in a read-only mode; manual sells then return 503. prices may be
// nil; single-position responses then omit the cached price.
func NewPositionHandler(store *position.Store, trader Trader, prices PriceReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{store: store, trader: trader, prices: prices, logger: logger}
}

// positionView decorates a position with the cached price mirror when an
// entry for the mint exists.
type positionView struct {
	domain.Position
	LastPrice       *float64 `json:"last_price,omitempty"`
	PriceAgeSeconds *float64 `json:"price_age_seconds,omitempty"`
}

// ListPositions returns all stored positions, newest first. With ?status=
// active or closed, the list is filtered.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.store.List()

	switch r.URL.Query().Get("status") {
	case "":
	case "active":
		positions = filterByActive(positions, true)
	case "closed":
		positions = filterByActive(positions, false)
	default:
		writeError(w, http.StatusBadRequest, "status must be active or closed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// GetPosition returns a single position by mint.
// GET /api/positions/{mint}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	pos, err := h.store.Get(mint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := positionView{Position: pos}
	if h.prices != nil {
		if price, ts, err := h.prices.GetPrice(r.Context(), mint); err == nil {
			age := time.Since(ts).Seconds()
			view.LastPrice = &price
			view.PriceAgeSeconds = &age
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// SellPosition liquidates an active position on operator request.
// POST /api/positions/{mint}/sell
func (h *PositionHandler) SellPosition(w http.ResponseWriter, r *http.Request) {
	if h.trader == nil {
		writeError(w, http.StatusServiceUnavailable, "trading is disabled in this mode")
		return
	}
	mint := r.PathValue("mint")

	h.logger.InfoContext(r.Context(), "manual sell requested", slog.String("mint", mint))

	if err := h.trader.ManualSell(r.Context(), mint); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	pos, err := h.store.Get(mint)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "sold"})
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func filterByActive(positions []domain.Position, active bool) []domain.Position {
	out := positions[:0]
	for _, p := range positions {
		if (p.Status == domain.PositionStatusActive) == active {
			out = append(out, p)
		}
	}
	return out
}
