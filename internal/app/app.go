package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirinyoku/tix-seats/internal/config"
	"github.com/kirinyoku/tix-seats/internal/mongo"
	"github.com/kirinyoku/tix-seats/internal/postgres"
	"github.com/kirinyoku/tix-seats/internal/redis"
	"github.com/kirinyoku/tix-seats/internal/repository"
	"github.com/kirinyoku/tix-seats/internal/repository/memory"
	mongorepo "github.com/kirinyoku/tix-seats/internal/repository/mongo"
	postgresrepo "github.com/kirinyoku/tix-seats/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tix-seats/internal/repository/redis"
	"github.com/kirinyoku/tix-seats/internal/service"
	"github.com/kirinyoku/tix-seats/internal/service/query"
	"github.com/kirinyoku/tix-seats/internal/service/reservation"
	httpgin "github.com/kirinyoku/tix-seats/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	storage    repository.Storage
	rdb        *goredis.Client
	cache      *redisrepo.Cache
	pubsub     *redisrepo.EventsPubSub
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	// Initialize storage
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("storage ready", slog.String("driver", cfg.Storage.Driver))

	if err := seedEvent(ctx, storage, cfg.Event, logger); err != nil {
		_ = storage.Close(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
	}

	// Redis-backed cache, pub/sub and request guards
	var deps httpgin.Deps
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  time.Second,
		})
		if err != nil {
			_ = storage.Close(context.Background())
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		a.rdb = rdb
		a.cache = redisrepo.New(rdb)
		a.pubsub = redisrepo.NewEventsPubSub(rdb)
		deps.Limiter = redisrepo.NewSlidingWindowLimiter(rdb, "reserve", cfg.Reservation.RateLimitPerMinute, time.Minute)
		deps.Idempotency = redisrepo.NewIdempotencyStore(rdb, cfg.Reservation.IdempotencyTTL)
	} else {
		logger.Warn("redis disabled: summary cache, rate limiting and idempotency keys are off")
	}

	// Initialize services
	services := service.NewServices(storage, a.cache, a.pubsub, logger, service.Config{
		Reservation: reservation.Config{
			MaxSeats:              cfg.Reservation.MaxSeats,
			ReleaseMaxAttempts:    cfg.Reservation.ReleaseMaxAttempts,
			ReleaseBackoffInitial: cfg.Reservation.ReleaseBackoffInitial,
			ReleaseBackoffMax:     cfg.Reservation.ReleaseBackoffMax,
		},
		Query: query.Config{
			SummaryTTL: cfg.Reservation.SummaryCacheTTL,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, deps, cfg.Event.ID, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (repository.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN(),
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return repository.Storage{}, fmt.Errorf("failed to initialize postgres: %w", err)
		}

		store := postgresrepo.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return repository.Storage{}, fmt.Errorf("failed to migrate postgres: %w", err)
		}

		return store.Storage(), nil

	case config.DriverMongo:
		client, err := mongo.New(ctx, mongo.Config{URI: cfg.Mongo.URI, Timeout: 5 * time.Second})
		if err != nil {
			return repository.Storage{}, fmt.Errorf("failed to initialize mongo: %w", err)
		}

		store := mongorepo.NewStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return repository.Storage{}, fmt.Errorf("failed to create mongo indexes: %w", err)
		}

		return store.Storage(), nil

	case config.DriverMemory:
		return memory.NewStorage(), nil
	}

	return repository.Storage{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func seedEvent(ctx context.Context, storage repository.Storage, ev config.EventConfig, logger *slog.Logger) error {
	created, err := storage.Inventory.SeedIfAbsent(ctx, ev.ID, ev.Name, ev.TotalSeats)
	if err != nil {
		return fmt.Errorf("failed to seed event %s: %w", ev.ID, err)
	}

	inv, err := storage.Inventory.Get(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to read event %s: %w", ev.ID, err)
	}

	attrs := []any{
		slog.String("event_id", inv.EventID),
		slog.Int("total_seats", inv.TotalSeats),
		slog.Int("available_seats", inv.AvailableSeats),
		slog.Int64("version", inv.Version),
	}

	if created {
		logger.Info("event inventory created", attrs...)
	} else {
		logger.Info("event inventory already exists", attrs...)
		if inv.TotalSeats != ev.TotalSeats {
			logger.Warn("EVENT_TOTAL_SEATS differs from stored capacity; keeping stored value",
				slog.Int("configured", ev.TotalSeats))
		}
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Drop cached summaries when another instance changes the inventory
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID string) {
				if err := a.cache.InvalidateEvent(ctx, eventID); err != nil {
					a.logger.Warn("cache invalidation failed", slog.String("event_id", eventID), slog.Any("error", err))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("inventory subscriber: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.storage.Close(ctx); err != nil {
		a.logger.Error("failed to close storage", slog.Any("error", err))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("failed to close redis", slog.Any("error", err))
		}
	}
}
