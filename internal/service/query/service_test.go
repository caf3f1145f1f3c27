package query_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository/memory"
	"github.com/kirinyoku/tix-seats/internal/service/query"
	"github.com/stretchr/testify/require"
)

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()

	_, err := st.Inventory.SeedIfAbsent(ctx, "evt", "Node.js Meet-up", 500)
	require.NoError(t, err)

	_, err = st.Inventory.ConditionalAdjust(ctx, "evt", 0, -10)
	require.NoError(t, err)

	for _, status := range []domain.ReservationStatus{
		domain.ReservationConfirmed,
		domain.ReservationConfirmed,
		domain.ReservationCancelled,
	} {
		require.NoError(t, st.Ledger.Create(ctx, domain.Reservation{
			ID:      uuid.New(),
			EventID: "evt",
			Seats:   5,
			Status:  status,
		}))
	}

	svc := query.New(st, nil, query.Config{})

	got, err := svc.GetSummary(ctx, "evt")
	require.NoError(t, err)
	require.Equal(t, domain.EventSummary{
		EventID:          "evt",
		Name:             "Node.js Meet-up",
		TotalSeats:       500,
		AvailableSeats:   490,
		ReservationCount: 2,
		Version:          1,
	}, *got)
}

func TestGetSummary_EventNotFound(t *testing.T) {
	svc := query.New(memory.NewStorage(), nil, query.Config{})

	_, err := svc.GetSummary(context.Background(), "missing")
	require.ErrorIs(t, err, query.ErrEventNotFound)
}
