package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS event_inventory (
		event_id        TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		total_seats     INTEGER NOT NULL CHECK (total_seats >= 0),
		available_seats INTEGER NOT NULL,
		version         BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT available_seats_in_range
			CHECK (available_seats BETWEEN 0 AND total_seats)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id            UUID PRIMARY KEY,
		event_id      TEXT NOT NULL REFERENCES event_inventory(event_id),
		partner_id    TEXT NOT NULL,
		seats         INTEGER NOT NULL CHECK (seats > 0),
		status        TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
		event_version BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_event_status_idx
		ON reservations (event_id, status)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_incidents (
		id             UUID PRIMARY KEY,
		kind           TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('open', 'resolved')),
		event_id       TEXT NOT NULL,
		reservation_id UUID NOT NULL,
		partner_id     TEXT NOT NULL DEFAULT '',
		seats          INTEGER NOT NULL,
		event_version  BIGINT NOT NULL DEFAULT 0,
		detail         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS reconciliation_incidents_open_idx
		ON reconciliation_incidents (reservation_id) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS release_claims (
		reservation_id UUID PRIMARY KEY,
		claimed_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables the service needs. Every statement is
// idempotent so it runs on each start.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Store.Migrate"

	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}
