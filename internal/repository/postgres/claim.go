package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClaimRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ClaimRepo) With(db DB) *ClaimRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ClaimRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *ClaimRepo) Claim(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	const op = "postgres.ClaimRepo.Claim"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO release_claims (reservation_id)
		 VALUES ($1)
		 ON CONFLICT (reservation_id) DO NOTHING`,
		reservationID,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *ClaimRepo) Unclaim(ctx context.Context, reservationID uuid.UUID) error {
	const op = "postgres.ClaimRepo.Unclaim"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`DELETE FROM release_claims WHERE reservation_id = $1`,
		reservationID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
