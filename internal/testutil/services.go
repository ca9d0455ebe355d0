package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	redisx "github.com/okozachenko/starbook/internal/redis"
	postgresrepo "github.com/okozachenko/starbook/internal/repository/postgres"
	redisrepo "github.com/okozachenko/starbook/internal/repository/redis"
	"github.com/okozachenko/starbook/internal/service"
	"github.com/okozachenko/starbook/internal/service/booking"
	"github.com/okozachenko/starbook/internal/service/catalog"
	"github.com/okozachenko/starbook/internal/service/notify"
	"github.com/okozachenko/starbook/internal/service/payment"
)

// NewServices wires the full service stack onto a test database. Redis is
// pointed at a dead address: cache writes and pubsub fan-out are best-effort
// in every code path, so they degrade to no-ops here.
func NewServices(pool *pgxpool.Pool) *service.Services {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
	})

	store := postgresrepo.NewStore(pool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewInventoryPubSub(rdb)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	gateway := payment.NewSimulatedGateway(0, time.Millisecond)
	mailer := notify.NewLogMailer(log)

	return service.NewServices(store, cache, pubsub, nil, nil, gateway, mailer, log, service.Config{
		Catalog: catalog.Config{},
		Booking: booking.Config{MaxUnitsPerBooking: 10},
	})
}
