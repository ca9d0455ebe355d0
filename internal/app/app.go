package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okozachenko/starbook/internal/config"
	"github.com/okozachenko/starbook/internal/postgres"
	redisx "github.com/okozachenko/starbook/internal/redis"
	postgresrepo "github.com/okozachenko/starbook/internal/repository/postgres"
	redisrepo "github.com/okozachenko/starbook/internal/repository/redis"
	"github.com/okozachenko/starbook/internal/service"
	"github.com/okozachenko/starbook/internal/service/booking"
	"github.com/okozachenko/starbook/internal/service/notify"
	"github.com/okozachenko/starbook/internal/service/payment"
	httpgin "github.com/okozachenko/starbook/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	cache      *redisrepo.Cache
	pubsub     *redisx.InventoryPubSub
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: cfg.Postgres.DSN()})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewInventoryPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "booking-create", cfg.Booking.CreateRateLimit, time.Minute)
	idem := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	gateway := payment.NewSimulatedGateway(cfg.Gateway.FailurePercent, cfg.Gateway.Latency)

	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	} else {
		mailer = notify.NewLogMailer(logger)
	}

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, idem, gateway, mailer, logger, service.Config{
		Booking: booking.Config{MaxUnitsPerBooking: cfg.Booking.MaxUnitsPerBooking},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		pubsub: pubsub,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Drop cached event views when another instance changes availability
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID int64) {
			_ = a.cache.InvalidateEvent(ctx, eventID)
		})
		if err != nil && gCtx.Err() == nil {
			a.logger.Error("inventory subscription stopped", "error", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
