package service

import (
	"log/slog"

	"github.com/kirinyoku/tix-seats/internal/repository"
	redisrepo "github.com/kirinyoku/tix-seats/internal/repository/redis"
	"github.com/kirinyoku/tix-seats/internal/service/admin"
	"github.com/kirinyoku/tix-seats/internal/service/query"
	"github.com/kirinyoku/tix-seats/internal/service/reservation"
)

type Services struct {
	Reservation *reservation.Service
	Query       *query.Service
	Admin       *admin.Service
}

type Config struct {
	Reservation reservation.Config
	Query       query.Config
}

// NewServices wires the services over one storage backend. cache and pubsub
// are nil when Redis is not configured.
func NewServices(
	storage repository.Storage,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	var (
		invalidator reservation.Invalidator
		publisher   reservation.Publisher
	)

	if cache != nil {
		invalidator = cache
	}

	if pubsub != nil {
		publisher = pubsub
	}

	res := reservation.New(storage, invalidator, publisher, logger, cfg.Reservation)

	return &Services{
		Reservation: res,
		Query:       query.New(storage, cache, cfg.Query),
		Admin:       admin.New(storage, res, logger),
	}
}
