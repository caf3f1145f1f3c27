package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/tix-seats/internal/domain"
)

type SnapshotReader struct {
	store *Store
}

// ConsistencySnapshot reads the inventory row and the confirmed seat total
// inside one REPEATABLE READ transaction so both come from the same snapshot.
func (s *SnapshotReader) ConsistencySnapshot(ctx context.Context, eventID string) (domain.ConsistencyReport, error) {
	const op = "postgres.SnapshotReader.ConsistencySnapshot"

	var report domain.ConsistencyReport

	err := s.store.RunTx(ctx, &pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(ctx context.Context, tx DB) error {
		e, err := s.store.Inventory().With(tx).Get(ctx, eventID)
		if err != nil {
			return err
		}

		confirmed, err := s.store.Reservations().
			With(tx).
			SumSeatsByEventAndStatus(ctx, eventID, domain.ReservationConfirmed)
		if err != nil {
			return err
		}

		report = domain.ConsistencyReport{
			EventID:        e.EventID,
			TotalSeats:     e.TotalSeats,
			AvailableSeats: e.AvailableSeats,
			Version:        e.Version,
			ConfirmedSeats: confirmed,
			Consistent:     int64(e.ReservedSeats()) == confirmed,
		}

		return nil
	})
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("%s:%w", op, err)
	}

	return report, nil
}
