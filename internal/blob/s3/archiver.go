package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// BlobWriter is the narrow upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ArchiverConfig controls the archive cycle.
type ArchiverConfig struct {
	// RetentionDays is how long trades stay in the journal before being
	// archived and pruned.
	RetentionDays int
	// Interval is the pause between archive cycles.
	Interval time.Duration
	// BatchLimit bounds how many trades one cycle drains.
	BatchLimit int
}

// Archiver periodically drains old trade journal rows to object storage as
// JSONL and prunes them from the journal. Pruning happens only after the
// upload succeeded, so a failed upload leaves the journal untouched.
type Archiver struct {
	cfg     ArchiverConfig
	writer  BlobWriter
	journal domain.TradeJournal
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(cfg ArchiverConfig, writer BlobWriter, journal domain.TradeJournal, logger *slog.Logger) *Archiver {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 5000
	}
	return &Archiver{
		cfg:     cfg,
		writer:  writer,
		journal: journal,
		logger:  logger.With(slog.String("component", "trade_archiver")),
	}
}

// Run executes archive cycles until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.ArchiveOnce(ctx); err != nil {
				a.logger.Error("archive cycle failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("archived trades", slog.Int64("count", n))
			}
		}
	}
}

// ArchiveOnce drains one batch of expired trades: upload first, prune after.
// It returns the number of trades archived.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.RetentionDays)

	trades, err := a.journal.ListBefore(ctx, cutoff, a.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	// Prune only what was uploaded: the batch is oldest-first, so everything
	// before the last record's timestamp is covered by this object.
	last := trades[len(trades)-1].CreatedAt.Add(time.Millisecond)
	deleted, err := a.journal.DeleteBefore(ctx, last)
	if err != nil {
		return int64(len(trades)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.Info("archive batch written",
		slog.String("path", path),
		slog.Int("uploaded", len(trades)),
		slog.Int64("pruned", deleted),
	)
	return int64(len(trades)), nil
}

func archivePath(cutoff time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%d.jsonl", cutoff.Format("2006-01"), time.Now().UnixNano())
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
