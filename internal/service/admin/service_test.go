package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
	"github.com/kirinyoku/tix-seats/internal/repository/memory"
	"github.com/kirinyoku/tix-seats/internal/service/admin"
	"github.com/kirinyoku/tix-seats/internal/service/reservation"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (repository.Storage, *admin.Service) {
	t.Helper()

	st := memory.NewStorage()
	_, err := st.Inventory.SeedIfAbsent(context.Background(), "evt", "Node.js Meet-up", 100)
	require.NoError(t, err)

	res := reservation.New(st, nil, nil, nil, reservation.Config{
		ReleaseBackoffInitial: time.Millisecond,
		ReleaseBackoffMax:     2 * time.Millisecond,
	})

	return st, admin.New(st, res, nil)
}

func TestResolveIncident_ReservationWriteFailed(t *testing.T) {
	ctx := context.Background()
	st, svc := setup(t)

	// seats debited with no reservation behind them
	applied, err := st.Inventory.ConditionalAdjust(ctx, "evt", 0, -6)
	require.NoError(t, err)
	require.True(t, applied)

	inc := domain.Incident{
		ID:            uuid.New(),
		Kind:          domain.IncidentReservationWriteFailed,
		Status:        domain.IncidentOpen,
		EventID:       "evt",
		ReservationID: uuid.New(),
		PartnerID:     "partnerA",
		Seats:         6,
		EventVersion:  1,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.Incidents.Record(ctx, inc))

	report, err := svc.CheckConsistency(ctx, "evt")
	require.NoError(t, err)
	require.False(t, report.Consistent)

	open, err := svc.ListIncidents(ctx, "open", 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	_, err = svc.ResolveIncident(ctx, inc.ID)
	require.NoError(t, err)

	report, err = svc.CheckConsistency(ctx, "evt")
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, int64(6), report.ConfirmedSeats)

	_, err = svc.ResolveIncident(ctx, inc.ID)
	require.ErrorIs(t, err, admin.ErrIncidentNotFound)

	resolved, err := svc.ListIncidents(ctx, "resolved", 10)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].ResolvedAt)
}

func TestResolveIncident_Unknown(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.ResolveIncident(context.Background(), uuid.New())
	require.ErrorIs(t, err, admin.ErrIncidentNotFound)
}

func TestListIncidents_InvalidStatus(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.ListIncidents(context.Background(), "pending", 10)
	require.ErrorIs(t, err, admin.ErrInvalidStatus)
}

func TestCheckConsistency_EventNotFound(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.CheckConsistency(context.Background(), "missing")
	require.ErrorIs(t, err, admin.ErrEventNotFound)
}
