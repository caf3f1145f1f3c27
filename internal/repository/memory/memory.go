// Package memory keeps inventory, reservations and incidents in process
// memory. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

// NewStorage returns a repository.Storage whose stores share nothing but the
// snapshot reader, which locks inventory and ledger together.
func NewStorage() repository.Storage {
	inv := NewInventoryRepo()
	led := NewLedgerRepo()

	return repository.Storage{
		Inventory: inv,
		Ledger:    led,
		Incidents: NewIncidentRepo(),
		Claims:    NewClaimRepo(),
		Snapshots: &SnapshotReader{inventory: inv, ledger: led},
		Close:     func(context.Context) error { return nil },
	}
}

type InventoryRepo struct {
	mu     sync.Mutex
	events map[string]domain.EventInventory
}

func NewInventoryRepo() *InventoryRepo {
	return &InventoryRepo{events: make(map[string]domain.EventInventory)}
}

func (r *InventoryRepo) Get(ctx context.Context, eventID string) (domain.EventInventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return domain.EventInventory{}, repository.ErrNotFound
	}

	return e, nil
}

// ConditionalAdjust checks and writes under the store mutex, which is what
// makes it indivisible for concurrent callers.
func (r *InventoryRepo) ConditionalAdjust(
	ctx context.Context,
	eventID string,
	expectedVersion int64,
	delta int,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok || e.Version != expectedVersion || !e.CanAdjust(delta) {
		return false, nil
	}

	e.AvailableSeats += delta
	e.Version++
	e.UpdatedAt = time.Now().UTC()
	r.events[eventID] = e

	return true, nil
}

func (r *InventoryRepo) SeedIfAbsent(ctx context.Context, eventID, name string, totalSeats int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[eventID]; ok {
		return false, nil
	}

	r.events[eventID] = domain.EventInventory{
		EventID:        eventID,
		Name:           name,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		UpdatedAt:      time.Now().UTC(),
	}

	return true, nil
}

type LedgerRepo struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]domain.Reservation
}

func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{reservations: make(map[uuid.UUID]domain.Reservation)}
}

func (r *LedgerRepo) Create(ctx context.Context, res domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[res.ID]; ok {
		return repository.ErrConflict
	}

	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now
	r.reservations[res.ID] = res

	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[id]
	if !ok {
		return domain.Reservation{}, repository.ErrNotFound
	}

	return res, nil
}

func (r *LedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok || res.Status != domain.ReservationConfirmed {
		return false, nil
	}

	res.Status = status
	res.UpdatedAt = time.Now().UTC()
	r.reservations[id] = res

	return true, nil
}

func (r *LedgerRepo) CountByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, res := range r.reservations {
		if res.EventID == eventID && res.Status == status {
			n++
		}
	}

	return n, nil
}

func (r *LedgerRepo) SumSeatsByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sumLocked(eventID, status), nil
}

func (r *LedgerRepo) sumLocked(eventID string, status domain.ReservationStatus) int64 {
	var n int64
	for _, res := range r.reservations {
		if res.EventID == eventID && res.Status == status {
			n += int64(res.Seats)
		}
	}
	return n
}

type IncidentRepo struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]domain.Incident
}

func NewIncidentRepo() *IncidentRepo {
	return &IncidentRepo{incidents: make(map[uuid.UUID]domain.Incident)}
}

func (r *IncidentRepo) Record(ctx context.Context, inc domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.incidents[inc.ID]; ok {
		return repository.ErrConflict
	}

	r.incidents[inc.ID] = inc

	return nil
}

func (r *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.incidents[id]
	if !ok {
		return domain.Incident{}, repository.ErrNotFound
	}

	return inc, nil
}

func (r *IncidentRepo) List(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if status == "" || inc.Status == status {
			out = append(out, inc)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *IncidentRepo) HasOpenForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inc := range r.incidents {
		if inc.ReservationID == reservationID && inc.Status == domain.IncidentOpen {
			return true, nil
		}
	}

	return false, nil
}

func (r *IncidentRepo) MarkResolved(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[id]
	if !ok || inc.Status != domain.IncidentOpen {
		return repository.ErrNotFound
	}

	now := time.Now().UTC()
	inc.Status = domain.IncidentResolved
	inc.ResolvedAt = &now
	r.incidents[id] = inc

	return nil
}

type ClaimRepo struct {
	mu     sync.Mutex
	claims map[uuid.UUID]time.Time
}

func NewClaimRepo() *ClaimRepo {
	return &ClaimRepo{claims: make(map[uuid.UUID]time.Time)}
}

func (r *ClaimRepo) Claim(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[reservationID]; ok {
		return false, nil
	}

	r.claims[reservationID] = time.Now().UTC()

	return true, nil
}

func (r *ClaimRepo) Unclaim(ctx context.Context, reservationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, reservationID)

	return nil
}

type SnapshotReader struct {
	inventory *InventoryRepo
	ledger    *LedgerRepo
}

func (s *SnapshotReader) ConsistencySnapshot(ctx context.Context, eventID string) (domain.ConsistencyReport, error) {
	s.inventory.mu.Lock()
	defer s.inventory.mu.Unlock()
	s.ledger.mu.RLock()
	defer s.ledger.mu.RUnlock()

	e, ok := s.inventory.events[eventID]
	if !ok {
		return domain.ConsistencyReport{}, repository.ErrNotFound
	}

	confirmed := s.ledger.sumLocked(eventID, domain.ReservationConfirmed)

	return domain.ConsistencyReport{
		EventID:        e.EventID,
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		Version:        e.Version,
		ConfirmedSeats: confirmed,
		Consistent:     int64(e.ReservedSeats()) == confirmed,
	}, nil
}
