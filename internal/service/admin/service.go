package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repairer applies the fix for a single incident.
type Repairer interface {
	Repair(ctx context.Context, inc domain.Incident) error
}

// Service exposes the reconciliation side: the incident log, repairs and
// the inventory/ledger consistency check.
type Service struct {
	incidents repository.IncidentLog
	snapshots repository.SnapshotReader
	repairer  Repairer
	logger    *slog.Logger
}

func New(storage repository.Storage, repairer Repairer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		incidents: storage.Incidents,
		snapshots: storage.Snapshots,
		repairer:  repairer,
		logger:    logger,
	}
}

// ListIncidents returns incidents newest first.
//
// Parameters:
//   - ctx: request-scoped context.
//   - status: "open", "resolved" or empty for all.
//   - limit: page size; defaults to 50, capped at 500.
//
// Returns:
//   - []domain.Incident: matching incidents.
//   - error: admin.ErrInvalidStatus for an unknown status.
func (s *Service) ListIncidents(ctx context.Context, status string, limit int) ([]domain.Incident, error) {
	const op = "service.admin.ListIncidents"

	st := domain.IncidentStatus(status)
	if st != "" && st != domain.IncidentOpen && st != domain.IncidentResolved {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	list, err := s.incidents.List(ctx, st, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// ResolveIncident applies the repair for an open incident and marks it
// resolved.
//
// Returns:
//   - domain.Incident: the incident as it was before the repair.
//   - error: admin.ErrIncidentNotFound if it is missing or already resolved.
//   - error: admin.ErrRepairFailed if the repair could not be applied; a new
//     open incident is recorded in that case.
func (s *Service) ResolveIncident(ctx context.Context, id uuid.UUID) (domain.Incident, error) {
	const op = "service.admin.ResolveIncident"

	inc, err := s.incidents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Incident{}, fmt.Errorf("%s: %w", op, ErrIncidentNotFound)
		}

		return domain.Incident{}, fmt.Errorf("%s: %w", op, err)
	}

	if inc.Status != domain.IncidentOpen {
		return domain.Incident{}, fmt.Errorf("%s: %w", op, ErrIncidentNotFound)
	}

	if err := s.repairer.Repair(ctx, inc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Incident{}, fmt.Errorf("%s: %w", op, ErrIncidentNotFound)
		}

		s.logger.Error("incident repair failed",
			slog.String("incident_id", id.String()),
			slog.String("kind", string(inc.Kind)),
			slog.Any("error", err),
		)

		return domain.Incident{}, fmt.Errorf("%s: %w: %w", op, ErrRepairFailed, err)
	}

	return inc, nil
}

// CheckConsistency compares the inventory debit with the seats held by
// confirmed reservations.
func (s *Service) CheckConsistency(ctx context.Context, eventID string) (domain.ConsistencyReport, error) {
	const op = "service.admin.CheckConsistency"

	report, err := s.snapshots.ConsistencySnapshot(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ConsistencyReport{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return domain.ConsistencyReport{}, fmt.Errorf("%s: %w", op, err)
	}

	if !report.Consistent {
		s.logger.Warn("inventory and ledger disagree",
			slog.String("event_id", eventID),
			slog.Int("reserved_seats", report.TotalSeats-report.AvailableSeats),
			slog.Int64("confirmed_seats", report.ConfirmedSeats),
		)
	}

	return report, nil
}
