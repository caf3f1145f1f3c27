package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-seats/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{pool: s.pool} }
func (s *Store) Reservations() *LedgerRepo { return &LedgerRepo{pool: s.pool} }
func (s *Store) Incidents() *IncidentRepo { return &IncidentRepo{pool: s.pool} }
func (s *Store) Claims() *ClaimRepo { return &ClaimRepo{pool: s.pool} }
func (s *Store) Snapshots() *SnapshotReader { return &SnapshotReader{store: s} }

// Storage exposes the store through the backend-neutral repository ports.
func (s *Store) Storage() repository.Storage {
	return repository.Storage{
		Inventory: s.Inventory(),
		Ledger:    s.Reservations(),
		Incidents: s.Incidents(),
		Claims:    s.Claims(),
		Snapshots: s.Snapshots(),
		Close: func(context.Context) error {
			s.pool.Close()
			return nil
		},
	}
}
