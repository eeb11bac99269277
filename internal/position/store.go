// Package position owns the authoritative in-memory set of positions, open
// and closed. It computes PnL on refresh, exposes the lifecycle transitions,
// and bounds its own memory by evicting the oldest closed positions once a
// capacity ceiling is exceeded. Active positions are never evicted.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// StoreConfig bounds the store.
type StoreConfig struct {
	// MaxStored is the capacity ceiling checked after each Open.
	MaxStored int
	// EvictTo is the absolute size eviction trims down to: enough of the
	// oldest closed positions are removed to bring the total count back to
	// this value. It is a target size, not a per-sweep removal count.
	EvictTo int
}

// Store is the in-memory position store. The mint address is the primary key;
// exactly one Position per mint exists at any time.
type Store struct {
	cfg    StoreConfig
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]*domain.Position
}

// NewStore creates an empty Store.
func NewStore(cfg StoreConfig, logger *slog.Logger) *Store {
	return &Store{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "position_store")),
		positions: make(map[string]*domain.Position),
	}
}

// Open creates a new active position. A second open for a mint already
// present is rejected idempotently: the existing position is left untouched
// and ErrDuplicatePosition is returned.
func (s *Store) Open(ctx context.Context, mint, symbol string, price, amount float64, sig string) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[mint]; ok {
		s.logger.WarnContext(ctx, "duplicate open rejected", slog.String("mint", mint))
		return nil, fmt.Errorf("position store: open %s: %w", mint, domain.ErrDuplicatePosition)
	}

	pos := &domain.Position{
		Mint:         mint,
		Symbol:       symbol,
		EntryPrice:   price,
		Amount:       amount,
		EntrySig:     sig,
		OpenedAt:     time.Now().UTC(),
		Status:       domain.PositionStatusActive,
		CurrentPrice: price,
		CurrentValue: price * amount,
	}
	s.positions[mint] = pos
	s.evictLocked(ctx)

	s.logger.InfoContext(ctx, "position opened",
		slog.String("mint", mint),
		slog.String("symbol", symbol),
		slog.Float64("price", price),
		slog.Float64("amount", amount),
	)
	return s.snapshotLocked(mint), nil
}

// Refresh updates the live price, value, and PnL of a position. Absent mints
// are a no-op so observability writes never race lifecycle transitions.
func (s *Store) Refresh(ctx context.Context, mint string, currentPrice, currentValue float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[mint]
	if !ok {
		return
	}
	pos.CurrentPrice = currentPrice
	pos.CurrentValue = currentValue
	entry := pos.EntryValue()
	pos.PnL = currentValue - entry
	if entry > 0 {
		pos.PnLPercent = pos.PnL / entry * 100
	}
}

// Close transitions a position to sold and stamps the exit fields. Closing an
// absent or already-closed position is a logged no-op.
func (s *Store) Close(ctx context.Context, mint string, reason domain.ExitReason, sig string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[mint]
	if !ok {
		s.logger.WarnContext(ctx, "close for unknown position", slog.String("mint", mint))
		return
	}
	if pos.Status != domain.PositionStatusActive {
		s.logger.WarnContext(ctx, "close for already-closed position",
			slog.String("mint", mint),
			slog.String("status", string(pos.Status)),
		)
		return
	}
	now := time.Now().UTC()
	pos.Status = domain.PositionStatusSold
	pos.ExitReason = reason
	pos.ExitSig = sig
	pos.ClosedAt = &now

	s.logger.InfoContext(ctx, "position closed",
		slog.String("mint", mint),
		slog.String("reason", string(reason)),
		slog.Float64("pnl", pos.PnL),
		slog.Float64("pnl_pct", pos.PnLPercent),
	)
}

// Get returns a copy of the position for the mint, or ErrNotFound.
func (s *Store) Get(mint string) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[mint]
	if !ok {
		return domain.Position{}, fmt.Errorf("position store: get %s: %w", mint, domain.ErrNotFound)
	}
	return *pos, nil
}

// Has reports whether any position (active or closed) exists for the mint.
func (s *Store) Has(mint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[mint]
	return ok
}

// List returns copies of all stored positions, newest first.
func (s *Store) List() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out
}

// Stats returns aggregate counts, win rate, and total realized PnL. Win rate
// is profitable closes over total closes; zero when nothing has closed yet.
func (s *Store) Stats() domain.PositionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st domain.PositionStats
	for _, pos := range s.positions {
		switch pos.Status {
		case domain.PositionStatusActive:
			st.Active++
		default:
			st.Closed++
			st.RealizedPnL += pos.PnL
			if pos.PnL > 0 {
				st.Wins++
			} else {
				st.Losses++
			}
		}
	}
	if st.Closed > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Closed) * 100
	}
	return st
}

// evictLocked removes the oldest closed positions (by acquisition time) until
// the store is at or under the watermark. Active positions are never evicted
// regardless of the ceiling breach. Caller must hold s.mu.
func (s *Store) evictLocked(ctx context.Context) {
	if s.cfg.MaxStored <= 0 || len(s.positions) <= s.cfg.MaxStored {
		return
	}

	closed := make([]*domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		if pos.Status != domain.PositionStatusActive {
			closed = append(closed, pos)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].OpenedAt.Before(closed[j].OpenedAt)
	})

	target := s.cfg.EvictTo
	if target <= 0 || target > s.cfg.MaxStored {
		target = s.cfg.MaxStored
	}
	evicted := 0
	for _, pos := range closed {
		if len(s.positions) <= target {
			break
		}
		delete(s.positions, pos.Mint)
		evicted++
	}
	if evicted > 0 {
		s.logger.InfoContext(ctx, "evicted closed positions",
			slog.Int("evicted", evicted),
			slog.Int("stored", len(s.positions)),
		)
	}
}

// snapshotLocked returns a copy of the stored position. Caller must hold s.mu.
func (s *Store) snapshotLocked(mint string) *domain.Position {
	cp := *s.positions[mint]
	return &cp
}
