package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

// Invalidator drops cached reads for an event.
type Invalidator interface {
	InvalidateEvent(ctx context.Context, eventID string) error
}

// Publisher tells other instances that an event's inventory changed.
type Publisher interface {
	PublishEventChanged(ctx context.Context, eventID string) error
}

type Config struct {
	MaxSeats              int
	ReleaseMaxAttempts    int
	ReleaseBackoffInitial time.Duration
	ReleaseBackoffMax     time.Duration
}

// Service reserves and releases seats against a single inventory record per
// event. The version-gated ConditionalAdjust is its only synchronization.
type Service struct {
	inventory repository.InventoryStore
	ledger    repository.ReservationLedger
	incidents repository.IncidentLog
	claims    repository.ReleaseClaims
	cache     Invalidator
	pubsub    Publisher
	logger    *slog.Logger
	cfg       Config
}

type Result struct {
	ReservationID uuid.UUID                `json:"reservationId"`
	Seats         int                      `json:"seats"`
	Status        domain.ReservationStatus `json:"status"`
}

var errNotApplied = errors.New("conditional adjust not applied")

// New builds the service. cache and pubsub may be nil.
func New(
	storage repository.Storage,
	cache Invalidator,
	pubsub Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = 10
	}

	if cfg.ReleaseMaxAttempts <= 0 {
		cfg.ReleaseMaxAttempts = 5
	}

	if cfg.ReleaseBackoffInitial <= 0 {
		cfg.ReleaseBackoffInitial = 10 * time.Millisecond
	}

	if cfg.ReleaseBackoffMax < cfg.ReleaseBackoffInitial {
		cfg.ReleaseBackoffMax = 20 * cfg.ReleaseBackoffInitial
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		inventory: storage.Inventory,
		ledger:    storage.Ledger,
		incidents: storage.Incidents,
		claims:    storage.Claims,
		cache:     cache,
		pubsub:    pubsub,
		logger:    logger,
		cfg:       cfg,
	}
}

// Reserve debits seats from the event's pool and records a confirmed
// reservation for the partner.
//
// Returns:
//   - ErrValidation (as ValidationError) for a blank partner or a seat count
//     outside [1, MaxSeats]; the store is not touched.
//   - ErrEventNotFound if the event has not been seeded.
//   - ErrCapacity (as CapacityError) if the snapshot cannot cover the request.
//   - ErrConcurrencyConflict if the inventory changed after it was read.
//   - ErrReconciliationRequired if seats were debited but the reservation
//     could not be recorded.
//   - ErrStoreFailure for any other store error.
func (s *Service) Reserve(ctx context.Context, eventID, partnerID string, seats int) (Result, error) {
	const op = "service.reservation.Reserve"

	partnerID = strings.TrimSpace(partnerID)
	if err := s.validate(partnerID, seats); err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	inv, err := s.inventory.Get(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, storeErr(err, ErrEventNotFound))
	}

	if seats > inv.AvailableSeats {
		return Result{}, fmt.Errorf("%s:%w", op, CapacityError{Requested: seats, Available: inv.AvailableSeats})
	}

	// from here on the outcome must be driven to completion
	ctx = context.WithoutCancel(ctx)

	applied, err := s.inventory.ConditionalAdjust(ctx, eventID, inv.Version, -seats)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, storeErr(err, ErrEventNotFound))
	}

	if !applied {
		return Result{}, fmt.Errorf("%s:%w", op, ErrConcurrencyConflict)
	}

	res := domain.Reservation{
		ID:           uuid.New(),
		EventID:      eventID,
		PartnerID:    partnerID,
		Seats:        seats,
		Status:       domain.ReservationConfirmed,
		EventVersion: inv.Version + 1,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.createWithRetry(ctx, res, false); err != nil {
		s.recordIncident(ctx, domain.IncidentReservationWriteFailed, res, err)
		return Result{}, fmt.Errorf("%s:%w", op, ErrReconciliationRequired)
	}

	s.notify(ctx, eventID)

	return Result{ReservationID: res.ID, Seats: res.Seats, Status: res.Status}, nil
}

// Release returns a confirmed reservation's seats to the pool and marks it
// cancelled. The reservation is claimed before any seats are credited, so of
// two concurrent Releases only one touches the inventory.
//
// Returns:
//   - ErrNotFoundOrAlreadyReleased if the reservation is missing, already
//     cancelled, or claimed by another Release.
//   - ErrReconciliationRequired if an open incident references the
//     reservation, or the seats were returned but the status could not be
//     updated.
//   - ErrStoreFailure for any other store error, including a credit that
//     did not apply within the retry budget.
func (s *Service) Release(ctx context.Context, reservationID uuid.UUID) error {
	const op = "service.reservation.Release"

	res, err := s.ledger.GetByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, storeErr(err, ErrNotFoundOrAlreadyReleased))
	}

	if res.Status != domain.ReservationConfirmed {
		return fmt.Errorf("%s:%w", op, ErrNotFoundOrAlreadyReleased)
	}

	open, err := s.incidents.HasOpenForReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, storeErr(err, ErrStoreFailure))
	}

	if open {
		return fmt.Errorf("%s:%w", op, ErrReconciliationRequired)
	}

	claimed, err := s.claims.Claim(ctx, res.ID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, storeErr(err, ErrStoreFailure))
	}

	if !claimed {
		return fmt.Errorf("%s:%w", op, ErrNotFoundOrAlreadyReleased)
	}

	ctx = context.WithoutCancel(ctx)

	if err := s.adjustWithRetry(ctx, res.EventID, res.Seats); err != nil {
		if uerr := s.claims.Unclaim(ctx, res.ID); uerr != nil {
			s.logger.Error("failed to drop release claim",
				slog.String("reservation_id", res.ID.String()),
				slog.Any("error", uerr),
			)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	flipped, err := s.cancelWithRetry(ctx, res.ID)
	if err != nil {
		s.recordIncident(ctx, domain.IncidentReleaseStatusFlipFailed, res, err)
		s.notify(ctx, res.EventID)
		return fmt.Errorf("%s:%w", op, ErrReconciliationRequired)
	}

	if !flipped {
		// cancelled outside Release after our lookup, so the seats went back
		// twice
		if err := s.adjustWithRetry(ctx, res.EventID, -res.Seats); err != nil {
			s.recordIncident(ctx, domain.IncidentDoubleRelease, res, err)
		}
		s.notify(ctx, res.EventID)
		return fmt.Errorf("%s:%w", op, ErrNotFoundOrAlreadyReleased)
	}

	s.notify(ctx, res.EventID)

	return nil
}

// Repair brings the ledger back in line with the inventory for one incident.
// The incident is claimed with MarkResolved before the repair runs, so two
// concurrent callers cannot both apply it. A repair that fails is recorded
// again as a new open incident.
func (s *Service) Repair(ctx context.Context, inc domain.Incident) error {
	const op = "service.reservation.Repair"

	if err := s.incidents.MarkResolved(ctx, inc.ID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	ctx = context.WithoutCancel(ctx)

	res := domain.Reservation{
		ID:           inc.ReservationID,
		EventID:      inc.EventID,
		PartnerID:    inc.PartnerID,
		Seats:        inc.Seats,
		Status:       domain.ReservationConfirmed,
		EventVersion: inc.EventVersion,
		CreatedAt:    inc.CreatedAt,
	}

	var err error
	switch inc.Kind {
	case domain.IncidentReservationWriteFailed:
		err = s.createWithRetry(ctx, res, true)
	case domain.IncidentReleaseStatusFlipFailed:
		var flipped bool
		flipped, err = s.cancelWithRetry(ctx, res.ID)
		if err == nil && !flipped {
			s.logger.Warn("reservation already cancelled during repair",
				slog.String("reservation_id", res.ID.String()),
				slog.String("incident_id", inc.ID.String()),
			)
		}
	case domain.IncidentDoubleRelease:
		err = s.adjustWithRetry(ctx, res.EventID, -res.Seats)
	default:
		err = fmt.Errorf("unknown incident kind %q", inc.Kind)
	}

	if err != nil {
		s.recordIncident(ctx, inc.Kind, res, err)
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("incident repaired",
		slog.String("incident_id", inc.ID.String()),
		slog.String("kind", string(inc.Kind)),
		slog.String("reservation_id", res.ID.String()),
	)

	s.notify(ctx, res.EventID)

	return nil
}

func (s *Service) validate(partnerID string, seats int) error {
	if partnerID == "" {
		return ValidationError{Field: "partnerId", Reason: "must not be empty"}
	}

	if seats < 1 || seats > s.cfg.MaxSeats {
		return ValidationError{
			Field:  "seats",
			Reason: fmt.Sprintf("must be between 1 and %d", s.cfg.MaxSeats),
		}
	}

	return nil
}

// adjustWithRetry re-reads the version before every attempt. Not-applied and
// transient errors are retried until the attempt budget runs out, which is
// reported as ErrStoreFailure.
func (s *Service) adjustWithRetry(ctx context.Context, eventID string, delta int) error {
	err := backoff.Retry(func() error {
		inv, err := s.inventory.Get(ctx, eventID)
		if err != nil {
			return retryable(err)
		}

		applied, err := s.inventory.ConditionalAdjust(ctx, eventID, inv.Version, delta)
		if err != nil {
			return retryable(err)
		}

		if !applied {
			return errNotApplied
		}

		return nil
	}, s.newBackOff(ctx))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotApplied):
		return fmt.Errorf("%w: %w after %d attempts", ErrStoreFailure, err, s.cfg.ReleaseMaxAttempts)
	default:
		return storeErr(err, ErrEventNotFound)
	}
}

// createWithRetry writes res under its fixed ID. A duplicate after the first
// attempt means an earlier attempt landed.
func (s *Service) createWithRetry(ctx context.Context, res domain.Reservation, duplicateOK bool) error {
	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		err := s.ledger.Create(ctx, res)
		if errors.Is(err, repository.ErrConflict) {
			if duplicateOK || attempt > 1 {
				return nil
			}
			return backoff.Permanent(err)
		}

		return err
	}, s.newBackOff(ctx))
}

func (s *Service) cancelWithRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	var flipped bool

	err := backoff.Retry(func() error {
		ok, err := s.ledger.UpdateStatus(ctx, id, domain.ReservationCancelled)
		if err != nil {
			return err
		}
		flipped = ok
		return nil
	}, s.newBackOff(ctx))

	return flipped, err
}

func (s *Service) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReleaseBackoffInitial
	b.MaxInterval = s.cfg.ReleaseBackoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(s.cfg.ReleaseMaxAttempts-1)),
		ctx,
	)
}

func (s *Service) recordIncident(
	ctx context.Context,
	kind domain.IncidentKind,
	res domain.Reservation,
	cause error,
) {
	inc := domain.Incident{
		ID:            uuid.New(),
		Kind:          kind,
		Status:        domain.IncidentOpen,
		EventID:       res.EventID,
		ReservationID: res.ID,
		PartnerID:     res.PartnerID,
		Seats:         res.Seats,
		EventVersion:  res.EventVersion,
		Detail:        cause.Error(),
		CreatedAt:     time.Now().UTC(),
	}

	attrs := []any{
		slog.String("kind", string(kind)),
		slog.String("incident_id", inc.ID.String()),
		slog.String("event_id", res.EventID),
		slog.String("reservation_id", res.ID.String()),
		slog.String("partner_id", res.PartnerID),
		slog.Int("seats", res.Seats),
		slog.Int64("event_version", res.EventVersion),
		slog.Any("error", cause),
	}

	s.logger.Error("reconciliation required", attrs...)

	if err := s.incidents.Record(ctx, inc); err != nil {
		s.logger.Error("failed to record incident", append(attrs, slog.Any("record_error", err))...)
	}
}

func (s *Service) notify(ctx context.Context, eventID string) {
	if s.cache != nil {
		if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
			s.logger.Warn("summary cache invalidation failed",
				slog.String("event_id", eventID), slog.Any("error", err))
		}
	}

	if s.pubsub != nil {
		if err := s.pubsub.PublishEventChanged(ctx, eventID); err != nil {
			s.logger.Warn("inventory change publish failed",
				slog.String("event_id", eventID), slog.Any("error", err))
		}
	}
}

func retryable(err error) error {
	if errors.Is(err, repository.ErrTransient) {
		return err
	}
	return backoff.Permanent(err)
}

// storeErr maps repository.ErrNotFound to notFound and anything else to
// ErrStoreFailure.
func storeErr(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
