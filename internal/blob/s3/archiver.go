package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// BlobWriter is the narrow interface the archiver needs from the S3 writer.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// TicketArchiveStore provides read access to a market's tickets for
// archival purposes.
type TicketArchiveStore interface {
	ListTicketsByMarket(ctx context.Context, marketID ident.ID) ([]*engine.Ticket, error)
}

// Archiver snapshots a settled or cancelled market together with every
// ticket staked against it to a single JSONL file in S3. It never deletes
// the primary-store records; that is left to a separate, explicit step
// taken only after the archive has been verified. The candidate markets
// themselves come from the caller (see app.runArchiveSweep), which already
// holds the store that can list them; the archiver only needs tickets.
type Archiver struct {
	writer  BlobWriter
	tickets TicketArchiveStore
	logger  *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer BlobWriter, tickets TicketArchiveStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{writer: writer, tickets: tickets, logger: logger}
}

// marketSnapshot is the archived record for one market.
type marketSnapshot struct {
	Market  *engine.Market   `json:"market"`
	Tickets []*engine.Ticket `json:"tickets"`
}

// ArchiveMarket snapshots a single resolved market and its tickets to
// archive/markets/{YYYY-MM}/{externalID}.jsonl, returning the number of tickets
// captured.
func (a *Archiver) ArchiveMarket(ctx context.Context, m *engine.Market) (int, error) {
	if m.Status == engine.MarketOpen {
		return 0, fmt.Errorf("s3blob: cannot archive an open market %s", m.ExternalID)
	}

	tickets, err := a.tickets.ListTicketsByMarket(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive market %s: list tickets: %w", m.ExternalID, err)
	}

	snapshot := marketSnapshot{Market: m, Tickets: tickets}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive market %s: marshal: %w", m.ExternalID, err)
	}
	data = append(data, '\n')

	path := archivePath(m.ExternalID, m.CreatedAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive market %s: upload: %w", m.ExternalID, err)
	}

	a.logger.Info("archived market", "external_id", m.ExternalID, "path", path, "tickets", len(tickets))
	return len(tickets), nil
}

// archivePath builds the S3 key for a market's archive file, partitioned
// by the year-month it was opened.
//
//	archive/markets/2026-08/will-it-rain.jsonl
func archivePath(externalID string, opened time.Time) string {
	return fmt.Sprintf("archive/markets/%s/%s.jsonl", opened.Format("2006-01"), externalID)
}
