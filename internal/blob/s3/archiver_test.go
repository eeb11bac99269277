package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	err   error
	paths []string
	data  [][]byte
}

func (f *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.paths = append(f.paths, path)
	f.data = append(f.data, buf)
	return nil
}

type fakeJournal struct {
	trades  []domain.TradeRecord
	listErr error

	deletedBefore *time.Time
}

func (f *fakeJournal) Record(ctx context.Context, rec domain.TradeRecord) error {
	f.trades = append(f.trades, rec)
	return nil
}

func (f *fakeJournal) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.TradeRecord
	for _, tr := range f.trades {
		if tr.CreatedAt.Before(before) {
			out = append(out, tr)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeJournal) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deletedBefore = &before
	var kept []domain.TradeRecord
	var deleted int64
	for _, tr := range f.trades {
		if tr.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, tr)
	}
	f.trades = kept
	return deleted, nil
}

func tradeAt(mint string, age time.Duration) domain.TradeRecord {
	return domain.TradeRecord{
		Mint:      mint,
		Side:      domain.SwapSideBuy,
		Signature: "sig-" + mint,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestArchiveOnceUploadsAndPrunes(t *testing.T) {
	journal := &fakeJournal{trades: []domain.TradeRecord{
		tradeAt("old1", 48*24*time.Hour),
		tradeAt("old2", 40*24*time.Hour),
		tradeAt("fresh", time.Hour),
	}}
	writer := &fakeWriter{}
	a := NewArchiver(ArchiverConfig{RetentionDays: 30}, writer, journal, discardLogger())

	n, err := a.ArchiveOnce(context.Background())
	if err != nil {
		t.Fatalf("ArchiveOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("archived %d trades, want 2", n)
	}

	if len(writer.paths) != 1 || !strings.HasPrefix(writer.paths[0], "archive/trades/") {
		t.Errorf("paths = %v", writer.paths)
	}

	// The object is JSONL, one record per line.
	scanner := bufio.NewScanner(bytes.NewReader(writer.data[0]))
	var mints []string
	for scanner.Scan() {
		var rec domain.TradeRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		mints = append(mints, rec.Mint)
	}
	if len(mints) != 2 || mints[0] != "old1" || mints[1] != "old2" {
		t.Errorf("archived mints = %v", mints)
	}

	// Only expired trades were pruned.
	if len(journal.trades) != 1 || journal.trades[0].Mint != "fresh" {
		t.Errorf("journal after prune = %+v", journal.trades)
	}
}

func TestArchiveOnceNothingExpired(t *testing.T) {
	journal := &fakeJournal{trades: []domain.TradeRecord{tradeAt("fresh", time.Hour)}}
	writer := &fakeWriter{}
	a := NewArchiver(ArchiverConfig{RetentionDays: 30}, writer, journal, discardLogger())

	n, err := a.ArchiveOnce(context.Background())
	if err != nil {
		t.Fatalf("ArchiveOnce: %v", err)
	}
	if n != 0 || len(writer.paths) != 0 {
		t.Errorf("n = %d, uploads = %d, want no work", n, len(writer.paths))
	}
}

func TestArchiveOnceFailedUploadKeepsJournal(t *testing.T) {
	journal := &fakeJournal{trades: []domain.TradeRecord{tradeAt("old1", 60*24*time.Hour)}}
	writer := &fakeWriter{err: errors.New("bucket unavailable")}
	a := NewArchiver(ArchiverConfig{RetentionDays: 30}, writer, journal, discardLogger())

	if _, err := a.ArchiveOnce(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if journal.deletedBefore != nil {
		t.Error("journal pruned despite failed upload")
	}
	if len(journal.trades) != 1 {
		t.Error("journal rows lost despite failed upload")
	}
}

func TestArchiveOnceRespectsBatchLimit(t *testing.T) {
	journal := &fakeJournal{trades: []domain.TradeRecord{
		tradeAt("old1", 50*24*time.Hour),
		tradeAt("old2", 45*24*time.Hour),
		tradeAt("old3", 40*24*time.Hour),
	}}
	writer := &fakeWriter{}
	a := NewArchiver(ArchiverConfig{RetentionDays: 30, BatchLimit: 2}, writer, journal, discardLogger())

	n, err := a.ArchiveOnce(context.Background())
	if err != nil {
		t.Fatalf("ArchiveOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("archived %d, want batch limit 2", n)
	}
	// The newest expired trade stays for the next cycle.
	if len(journal.trades) != 1 || journal.trades[0].Mint != "old3" {
		t.Errorf("journal after prune = %+v", journal.trades)
	}
}
