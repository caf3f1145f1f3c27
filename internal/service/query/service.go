package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
	redisrepo "github.com/kirinyoku/tix-seats/internal/repository/redis"
)

type Config struct {
	SummaryTTL time.Duration
}

type Service struct {
	inventory repository.InventoryStore
	ledger    repository.ReservationLedger
	cache     *redisrepo.Cache
	cfg       Config
}

// New builds the read side. A nil cache sends every read to the store.
func New(storage repository.Storage, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 2 * time.Second
	}

	return &Service{
		inventory: storage.Inventory,
		ledger:    storage.Ledger,
		cache:     cache,
		cfg:       cfg,
	}
}

// GetSummary returns the capacity view of an event together with the number
// of confirmed reservations, utilizing a short-lived cache when configured.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventID: ID of the event to summarize.
//
// Returns:
//   - *domain.EventSummary: the summary.
//   - error: query.ErrEventNotFound if the event has not been seeded.
func (s *Service) GetSummary(ctx context.Context, eventID string) (*domain.EventSummary, error) {
	const op = "service.query.GetSummary"

	var (
		summary domain.EventSummary
		err     error
	)

	if s.cache != nil {
		summary, err = redisrepo.GetOrSetJSON(
			ctx,
			s.cache,
			redisrepo.KeyEventSummary(eventID),
			s.cfg.SummaryTTL,
			func(ctx context.Context) (domain.EventSummary, error) {
				return s.load(ctx, eventID)
			},
		)
	} else {
		summary, err = s.load(ctx, eventID)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &summary, nil
}

func (s *Service) load(ctx context.Context, eventID string) (domain.EventSummary, error) {
	inv, err := s.inventory.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.EventSummary{}, ErrEventNotFound
		}

		return domain.EventSummary{}, err
	}

	count, err := s.ledger.CountByEventAndStatus(ctx, eventID, domain.ReservationConfirmed)
	if err != nil {
		return domain.EventSummary{}, err
	}

	return domain.EventSummary{
		EventID:          inv.EventID,
		Name:             inv.Name,
		TotalSeats:       inv.TotalSeats,
		AvailableSeats:   inv.AvailableSeats,
		ReservationCount: count,
		Version:          inv.Version,
	}, nil
}
