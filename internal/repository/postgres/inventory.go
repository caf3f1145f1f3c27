package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-seats/internal/domain"
)

type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves the inventory record of an event.
//
// Returns:
//   - domain.EventInventory: the current record.
//   - error: repository.ErrNotFound if the event has not been seeded.
func (r *InventoryRepo) Get(ctx context.Context, eventID string) (domain.EventInventory, error) {
	const op = "postgres.InventoryRepo.Get"

	db := r.handle()

	var e domain.EventInventory
	err := db.QueryRow(ctx,
		`SELECT event_id, name, total_seats, available_seats, version, updated_at
		 FROM event_inventory WHERE event_id = $1`,
		eventID,
	).Scan(&e.EventID, &e.Name, &e.TotalSeats, &e.AvailableSeats, &e.Version, &e.UpdatedAt)
	if err != nil {
		return domain.EventInventory{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return e, nil
}

// ConditionalAdjust applies delta in a single UPDATE guarded by the expected
// version and the seat bounds. Zero rows affected means another writer got
// there first or the bounds would be violated.
func (r *InventoryRepo) ConditionalAdjust(
	ctx context.Context,
	eventID string,
	expectedVersion int64,
	delta int,
) (bool, error) {
	const op = "postgres.InventoryRepo.ConditionalAdjust"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE event_inventory
		    SET available_seats = available_seats + $3,
		        version = version + 1,
		        updated_at = now()
		  WHERE event_id = $1
		    AND version = $2
		    AND available_seats + $3 BETWEEN 0 AND total_seats`,
		eventID, expectedVersion, delta,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *InventoryRepo) SeedIfAbsent(ctx context.Context, eventID, name string, totalSeats int) (bool, error) {
	const op = "postgres.InventoryRepo.SeedIfAbsent"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO event_inventory (event_id, name, total_seats, available_seats, version)
		 VALUES ($1, $2, $3, $3, 0)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, name, totalSeats,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() == 1, nil
}
