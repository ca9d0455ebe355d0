package service

import (
	"log/slog"

	redisx "github.com/okozachenko/starbook/internal/redis"
	postgres "github.com/okozachenko/starbook/internal/repository/postgres"
	redis "github.com/okozachenko/starbook/internal/repository/redis"
	"github.com/okozachenko/starbook/internal/service/booking"
	"github.com/okozachenko/starbook/internal/service/catalog"
	"github.com/okozachenko/starbook/internal/service/notify"
	"github.com/okozachenko/starbook/internal/service/payment"
	"github.com/okozachenko/starbook/internal/service/ticketing"
)

type Services struct {
	Catalog   *catalog.Service
	Booking   *booking.Service
	Payment   *payment.Service
	Ticketing *ticketing.Service
}

type Config struct {
	Catalog catalog.Config
	Booking booking.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.InventoryPubSub,
	limiter *redis.SlidingWindowLimiter,
	idem *redis.IdempotencyStore,
	gateway payment.Gateway,
	mailer notify.Mailer,
	log *slog.Logger,
	cfg Config,
) *Services {
	ticketingSvc := ticketing.New(store)

	return &Services{
		Catalog:   catalog.New(store, cache, cfg.Catalog),
		Booking:   booking.New(store, cache, pubsub, limiter, log, cfg.Booking),
		Payment:   payment.New(store, cache, pubsub, idem, gateway, ticketingSvc, mailer, log),
		Ticketing: ticketingSvc,
	}
}
