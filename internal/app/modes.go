package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opinionlabs/settlement-engine/internal/server"
	"github.com/opinionlabs/settlement-engine/internal/server/handler"
)

// archivePollInterval governs how often ArchiverMode checks for newly
// archivable markets. Actual cadence tuning belongs to cfg.Engine.ArchiveCron
// once a real scheduler backs it; this poll loop is the interim mechanism.
const archivePollInterval = 10 * time.Minute

// settlementReminderInterval governs how often the reminder sweep checks for
// markets that ended without being settled.
const settlementReminderInterval = 5 * time.Minute

// ServerMode starts the HTTP API surface only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiverMode runs the periodic archival sweep and the settlement reminder
// sweep, no HTTP surface.
func (a *App) ArchiverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archiver mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	a.startSettlementReminderLoop(ctx, g, deps)
	return g.Wait()
}

// AllMode runs the HTTP surface, the archival sweep and the settlement
// reminder sweep together, the single-process deployment shape for small
// installations.
func (a *App) AllMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting all mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)
	a.startSettlementReminderLoop(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer adds an HTTP server goroutine to the given errgroup. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	health := handler.NewHealthHandler(a.logger)
	engineHandler := handler.NewEngineHandler(deps.Engine, deps.Markets, deps.Tickets, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health: health,
		Engine: engineHandler,
	}, deps.RateLimiter, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop adds the periodic archival sweep to the given errgroup.
// Each tick snapshots every settled or cancelled market older than
// cfg.Engine.ArchiveAfter to S3 and logs any failure.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ticker := time.NewTicker(archivePollInterval)
		defer ticker.Stop()

		a.runArchiveSweep(ctx, deps)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.runArchiveSweep(ctx, deps)
			}
		}
	})
}

// startSettlementReminderLoop adds a periodic sweep for markets whose EndsAt
// has passed without being settled or cancelled. Unlike the archive loop,
// this never mutates state; it only notifies operators via deps.Notifier so a
// human (or the market's authority) can call Settle or Cancel.
func (a *App) startSettlementReminderLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ticker := time.NewTicker(settlementReminderInterval)
		defer ticker.Stop()

		a.runSettlementReminderSweep(ctx, deps)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.runSettlementReminderSweep(ctx, deps)
			}
		}
	})
}

func (a *App) runSettlementReminderSweep(ctx context.Context, deps *Dependencies) {
	markets, err := deps.Markets.ListEndedOpen(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "settlement reminder sweep: list ended open markets failed",
			slog.String("error", err.Error()))
		return
	}
	if len(markets) == 0 {
		return
	}

	for _, m := range markets {
		a.logger.WarnContext(ctx, "market ended without settlement",
			slog.String("external_id", m.ExternalID),
			slog.Time("ends_at", m.EndsAt))
	}

	msg := fmt.Sprintf("%d market(s) ended without settlement; authority action required", len(markets))
	if err := deps.Notifier.Notify(ctx, "settlement_overdue", "Settlement overdue", msg); err != nil {
		a.logger.ErrorContext(ctx, "settlement reminder sweep: notify failed",
			slog.String("error", err.Error()))
	}
}

func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies) {
	cutoff := time.Now().Add(-a.cfg.Engine.ArchiveAfter.Duration)

	markets, err := deps.Markets.ListArchivable(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive sweep: list archivable markets failed",
			slog.String("error", err.Error()))
		return
	}

	for _, m := range markets {
		n, err := deps.Archiver.ArchiveMarket(ctx, m)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive sweep: archive market failed",
				slog.String("external_id", m.ExternalID),
				slog.String("error", err.Error()))
			continue
		}
		a.logger.InfoContext(ctx, "archive sweep: archived market",
			slog.String("external_id", m.ExternalID),
			slog.Int("tickets", n))
	}
}
