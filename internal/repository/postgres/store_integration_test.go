//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tixseats"),
		tcpostgres.WithUsername("tix"),
		tcpostgres.WithPassword("tix"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgC)
	require.NoError(t, err)

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool)
	require.NoError(t, store.Migrate(ctx))
	// idempotent
	require.NoError(t, store.Migrate(ctx))

	return store
}

func TestStore_Integration(t *testing.T) {
	store := newTestStore(t)
	st := store.Storage()
	ctx := context.Background()

	created, err := st.Inventory.SeedIfAbsent(ctx, "evt", "Node.js Meet-up", 500)
	require.NoError(t, err)
	require.True(t, created)

	created, err = st.Inventory.SeedIfAbsent(ctx, "evt", "Node.js Meet-up", 500)
	require.NoError(t, err)
	require.False(t, created)

	t.Run("conditional adjust bounds", func(t *testing.T) {
		applied, err := st.Inventory.ConditionalAdjust(ctx, "evt", 0, -501)
		require.NoError(t, err)
		require.False(t, applied)

		applied, err = st.Inventory.ConditionalAdjust(ctx, "evt", 0, 1)
		require.NoError(t, err)
		require.False(t, applied)

		applied, err = st.Inventory.ConditionalAdjust(ctx, "missing", 0, -1)
		require.NoError(t, err)
		require.False(t, applied)

		inv, err := st.Inventory.Get(ctx, "evt")
		require.NoError(t, err)
		require.Equal(t, 500, inv.AvailableSeats)
		require.Zero(t, inv.Version)
	})

	t.Run("one winner per version", func(t *testing.T) {
		inv, err := st.Inventory.Get(ctx, "evt")
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := st.Inventory.ConditionalAdjust(ctx, "evt", inv.Version, -5)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())

		after, err := st.Inventory.Get(ctx, "evt")
		require.NoError(t, err)
		require.Equal(t, inv.AvailableSeats-5, after.AvailableSeats)
		require.Equal(t, inv.Version+1, after.Version)
	})

	t.Run("ledger", func(t *testing.T) {
		res := domain.Reservation{
			ID:           uuid.New(),
			EventID:      "evt",
			PartnerID:    "partnerA",
			Seats:        5,
			Status:       domain.ReservationConfirmed,
			EventVersion: 1,
		}
		require.NoError(t, st.Ledger.Create(ctx, res))
		require.ErrorIs(t, st.Ledger.Create(ctx, res), repository.ErrConflict)

		got, err := st.Ledger.GetByID(ctx, res.ID)
		require.NoError(t, err)
		require.Equal(t, "partnerA", got.PartnerID)
		require.Equal(t, domain.ReservationConfirmed, got.Status)

		report, err := st.Snapshots.ConsistencySnapshot(ctx, "evt")
		require.NoError(t, err)
		require.True(t, report.Consistent)
		require.Equal(t, int64(5), report.ConfirmedSeats)

		n, err := st.Ledger.CountByEventAndStatus(ctx, "evt", domain.ReservationConfirmed)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		ok, err := st.Ledger.UpdateStatus(ctx, res.ID, domain.ReservationCancelled)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.Ledger.UpdateStatus(ctx, res.ID, domain.ReservationCancelled)
		require.NoError(t, err)
		require.False(t, ok)

		_, err = st.Ledger.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("incidents", func(t *testing.T) {
		inc := domain.Incident{
			ID:            uuid.New(),
			Kind:          domain.IncidentDoubleRelease,
			Status:        domain.IncidentOpen,
			EventID:       "evt",
			ReservationID: uuid.New(),
			PartnerID:     "partnerA",
			Seats:         2,
			Detail:        "compensation not applied",
			CreatedAt:     time.Now().UTC(),
		}
		require.NoError(t, st.Incidents.Record(ctx, inc))

		open, err := st.Incidents.HasOpenForReservation(ctx, inc.ReservationID)
		require.NoError(t, err)
		require.True(t, open)

		list, err := st.Incidents.List(ctx, domain.IncidentOpen, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, inc.Kind, list[0].Kind)

		require.NoError(t, st.Incidents.MarkResolved(ctx, inc.ID))
		require.ErrorIs(t, st.Incidents.MarkResolved(ctx, inc.ID), repository.ErrNotFound)

		got, err := st.Incidents.Get(ctx, inc.ID)
		require.NoError(t, err)
		require.Equal(t, domain.IncidentResolved, got.Status)
		require.NotNil(t, got.ResolvedAt)

		open, err = st.Incidents.HasOpenForReservation(ctx, inc.ReservationID)
		require.NoError(t, err)
		require.False(t, open)
	})

	t.Run("release claims", func(t *testing.T) {
		id := uuid.New()

		ok, err := st.Claims.Claim(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.Claims.Claim(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, st.Claims.Unclaim(ctx, id))

		ok, err = st.Claims.Claim(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	})
}
