package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ryabkov/solsniper/internal/domain"
)

// TradeJournal implements domain.TradeJournal using PostgreSQL. It is an
// append-only audit mirror of executed swaps; the in-memory position store
// stays authoritative for the trading loop.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a TradeJournal backed by the given connection pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Record appends one executed swap. Re-recording a signature already present
// is silently skipped so retried writes stay idempotent.
func (j *TradeJournal) Record(ctx context.Context, rec domain.TradeRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO trades (id, mint, symbol, side, price, amount, signature, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		rec.ID, rec.Mint, rec.Symbol, string(rec.Side),
		rec.Price, rec.Amount, rec.Signature, rec.Reason, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", rec.Signature, err)
	}
	return nil
}

// ListBefore returns trades created strictly before the cutoff, oldest first.
// The archiver drains the journal through this.
func (j *TradeJournal) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `
		SELECT id, mint, symbol, side, price, amount, signature, reason, created_at
		FROM trades
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := j.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", cutoff, err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var side string
		if err := rows.Scan(
			&rec.ID, &rec.Mint, &rec.Symbol, &side,
			&rec.Price, &rec.Amount, &rec.Signature, &rec.Reason, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		rec.Side = domain.SwapSide(side)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteBefore removes trades created strictly before the cutoff and returns
// the number deleted. Called after a verified archive upload.
func (j *TradeJournal) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := j.pool.Exec(ctx, "DELETE FROM trades WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TradeJournal = (*TradeJournal)(nil)
