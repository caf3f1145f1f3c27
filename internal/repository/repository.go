package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
)

// InventoryStore holds event inventory records. ConditionalAdjust is the only
// way AvailableSeats changes after the record is seeded.
type InventoryStore interface {
	// Get returns ErrNotFound if the event has not been seeded.
	Get(ctx context.Context, eventID string) (domain.EventInventory, error)

	// ConditionalAdjust atomically adds delta to AvailableSeats and bumps the
	// version, but only if the stored version equals expectedVersion and the
	// result stays within [0, TotalSeats]. It reports whether it applied.
	ConditionalAdjust(ctx context.Context, eventID string, expectedVersion int64, delta int) (bool, error)

	// SeedIfAbsent creates the record with AvailableSeats = totalSeats and
	// version 0 unless it already exists. It reports whether it created it.
	SeedIfAbsent(ctx context.Context, eventID, name string, totalSeats int) (bool, error)
}

type ReservationLedger interface {
	// Create returns ErrConflict if a reservation with the same ID exists.
	Create(ctx context.Context, r domain.Reservation) error

	// GetByID returns ErrNotFound if the reservation does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error)

	// UpdateStatus moves a confirmed reservation to status. It reports false
	// when the reservation is missing or no longer confirmed.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus) (bool, error)

	CountByEventAndStatus(ctx context.Context, eventID string, status domain.ReservationStatus) (int64, error)
	SumSeatsByEventAndStatus(ctx context.Context, eventID string, status domain.ReservationStatus) (int64, error)
}

type IncidentLog interface {
	Record(ctx context.Context, inc domain.Incident) error
	Get(ctx context.Context, id uuid.UUID) (domain.Incident, error)
	// List returns incidents newest first; an empty status lists all.
	List(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error)
	HasOpenForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error)
	// MarkResolved returns ErrNotFound if the incident is missing or already resolved.
	MarkResolved(ctx context.Context, id uuid.UUID) error
}

// ReleaseClaims guards Release against running twice for one reservation.
// A claim outlives the Release that took it, so a reservation's seats can
// be returned at most once.
type ReleaseClaims interface {
	// Claim reports false if the reservation is already claimed.
	Claim(ctx context.Context, reservationID uuid.UUID) (bool, error)
	// Unclaim drops a claim whose Release returned nothing to the pool.
	Unclaim(ctx context.Context, reservationID uuid.UUID) error
}

// SnapshotReader reads inventory and ledger totals from one consistent view.
type SnapshotReader interface {
	ConsistencySnapshot(ctx context.Context, eventID string) (domain.ConsistencyReport, error)
}

// Storage bundles one backend's implementations.
type Storage struct {
	Inventory InventoryStore
	Ledger    ReservationLedger
	Incidents IncidentLog
	Claims    ReleaseClaims
	Snapshots SnapshotReader
	Close     func(ctx context.Context) error
}
