package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/opinionlabs/settlement-engine/internal/blob/s3"
	"github.com/opinionlabs/settlement-engine/internal/cache/redis"
	"github.com/opinionlabs/settlement-engine/internal/config"
	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/notify"
	"github.com/opinionlabs/settlement-engine/internal/store/postgres"
)

// fanoutEventSink appends every engine event to both the durable Postgres
// event log and the live Redis stream mirror. The engine only ever sees
// one EventSink; composing the two sinks is Wire's job, not the engine's.
type fanoutEventSink struct {
	durable *postgres.EventStore
	mirror  *redis.EventMirror
}

func (f *fanoutEventSink) Append(ctx context.Context, ev engine.Event) error {
	if err := f.durable.Append(ctx, ev); err != nil {
		return err
	}
	// The mirror is best-effort: a dashboard missing one tick is not worth
	// failing the caller's request over, given the durable log already has it.
	_ = f.mirror.Append(ctx, ev)
	return nil
}

// Dependencies bundles every dependency the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Markets *postgres.MarketStore
	Tickets *postgres.TicketStore
	Escrows *postgres.EscrowStore

	Engine *engine.Engine

	MarketCache *redis.MarketCache
	LockManager *redis.LockManager
	RateLimiter *redis.RateLimiter
	SignalBus   *redis.SignalBus

	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Tickets = postgres.NewTicketStore(pool)
	deps.Escrows = postgres.NewEscrowStore(pool)
	eventStore := postgres.NewEventStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	eventMirror := redis.NewEventMirror(deps.SignalBus)

	// --- Engine ---
	deps.Engine = engine.New(deps.Markets, deps.Tickets, deps.Escrows, &fanoutEventSink{
		durable: eventStore,
		mirror:  eventMirror,
	})

	// --- S3 archival ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = s3Client.Close() })

	writer := s3blob.NewWriter(s3Client)
	deps.Archiver = s3blob.NewArchiver(writer, deps.Tickets, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
