package handler

import (
	"log/slog"
	"net/http"

	"github.com/ryabkov/solsniper/internal/position"
)

// Watchlist exposes the mints the sell monitor currently tracks.
type Watchlist interface {
	Watched() []string
}

// StatsHandler serves aggregate trading statistics.
type StatsHandler struct {
	store     *position.Store
	watchlist Watchlist // nil when monitoring is off
	logger    *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(store *position.Store, watchlist Watchlist, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{store: store, watchlist: watchlist, logger: logger}
}

// GetStats returns position counts, win rate, realized PnL, and the watched
// mints.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()

	resp := map[string]any{
		"active":       stats.Active,
		"closed":       stats.Closed,
		"wins":         stats.Wins,
		"losses":       stats.Losses,
		"win_rate":     stats.WinRate,
		"realized_pnl": stats.RealizedPnL,
	}
	if h.watchlist != nil {
		resp["watched"] = h.watchlist.Watched()
	}
	writeJSON(w, http.StatusOK, resp)
}
