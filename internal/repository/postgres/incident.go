package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

type IncidentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *IncidentRepo) With(db DB) *IncidentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *IncidentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const incidentColumns = `id, kind, status, event_id, reservation_id, partner_id,
	seats, event_version, detail, created_at, resolved_at`

func (r *IncidentRepo) Record(ctx context.Context, inc domain.Incident) error {
	const op = "postgres.IncidentRepo.Record"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO reconciliation_incidents
		 	(id, kind, status, event_id, reservation_id, partner_id, seats, event_version, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inc.ID,
		string(inc.Kind),
		string(inc.Status),
		inc.EventID,
		inc.ReservationID,
		inc.PartnerID,
		inc.Seats,
		inc.EventVersion,
		inc.Detail,
		inc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Incident, error) {
	const op = "postgres.IncidentRepo.Get"

	db := r.handle()

	inc, err := scanIncident(db.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM reconciliation_incidents WHERE id = $1`,
		id,
	))
	if err != nil {
		return domain.Incident{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return inc, nil
}

func (r *IncidentRepo) List(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error) {
	const op = "postgres.IncidentRepo.List"

	db := r.handle()

	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(ctx,
		`SELECT `+incidentColumns+`
		 FROM reconciliation_incidents
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *IncidentRepo) HasOpenForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	const op = "postgres.IncidentRepo.HasOpenForReservation"

	db := r.handle()

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM reconciliation_incidents
			WHERE reservation_id = $1 AND status = 'open'
		 )`,
		reservationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return exists, nil
}

func (r *IncidentRepo) MarkResolved(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.IncidentRepo.MarkResolved"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reconciliation_incidents
		    SET status = 'resolved', resolved_at = now()
		  WHERE id = $1 AND status = 'open'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func scanIncident(row pgx.Row) (domain.Incident, error) {
	var inc domain.Incident
	var kind, status string

	err := row.Scan(
		&inc.ID,
		&kind,
		&status,
		&inc.EventID,
		&inc.ReservationID,
		&inc.PartnerID,
		&inc.Seats,
		&inc.EventVersion,
		&inc.Detail,
		&inc.CreatedAt,
		&inc.ResolvedAt,
	)
	if err != nil {
		return domain.Incident{}, err
	}

	inc.Kind = domain.IncidentKind(kind)
	inc.Status = domain.IncidentStatus(status)

	return inc, nil
}
