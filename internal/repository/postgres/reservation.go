package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-seats/internal/domain"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a reservation.
//
// Returns:
//   - error: repository.ErrConflict if a reservation with the same ID exists.
func (r *LedgerRepo) Create(ctx context.Context, res domain.Reservation) error {
	const op = "postgres.LedgerRepo.Create"

	db := r.handle()

	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx,
		`INSERT INTO reservations (id, event_id, partner_id, seats, status, event_version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		res.ID, res.EventID, res.PartnerID, res.Seats, string(res.Status), res.EventVersion, createdAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// GetByID retrieves a reservation by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation does not exist.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const op = "postgres.LedgerRepo.GetByID"

	db := r.handle()

	var res domain.Reservation
	var status string
	err := db.QueryRow(ctx,
		`SELECT id, event_id, partner_id, seats, status, event_version, created_at, updated_at
		 FROM reservations WHERE id = $1`,
		id,
	).Scan(
		&res.ID,
		&res.EventID,
		&res.PartnerID,
		&res.Seats,
		&status,
		&res.EventVersion,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	res.Status = domain.ReservationStatus(status)

	return res, nil
}

// UpdateStatus only ever moves a reservation out of 'confirmed'.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus) (bool, error) {
	const op = "postgres.LedgerRepo.UpdateStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reservations
		    SET status = $2, updated_at = now()
		  WHERE id = $1 AND status = 'confirmed'`,
		id, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepo) CountByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	const op = "postgres.LedgerRepo.CountByEventAndStatus"

	db := r.handle()

	var n int64
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = $1 AND status = $2`,
		eventID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}

func (r *LedgerRepo) SumSeatsByEventAndStatus(
	ctx context.Context,
	eventID string,
	status domain.ReservationStatus,
) (int64, error) {
	const op = "postgres.LedgerRepo.SumSeatsByEventAndStatus"

	db := r.handle()

	var n int64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(seats), 0) FROM reservations WHERE event_id = $1 AND status = $2`,
		eventID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}
