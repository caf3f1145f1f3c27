package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-seats/internal/domain"
	"github.com/kirinyoku/tix-seats/internal/repository"
	"github.com/kirinyoku/tix-seats/internal/repository/memory"
	redisrepo "github.com/kirinyoku/tix-seats/internal/repository/redis"
	"github.com/kirinyoku/tix-seats/internal/service"
	"github.com/kirinyoku/tix-seats/internal/service/admin"
	"github.com/kirinyoku/tix-seats/internal/service/reservation"
	"github.com/stretchr/testify/require"
)

const testEventID = "evt-http"

func newTestRouter(t *testing.T, totalSeats int) (*gin.Engine, repository.Storage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memory.NewStorage()
	_, err := st.Inventory.SeedIfAbsent(context.Background(), testEventID, "Node.js Meet-up", totalSeats)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(st, nil, nil, logger, service.Config{
		Reservation: reservation.Config{
			ReleaseBackoffInitial: time.Millisecond,
			ReleaseBackoffMax:     2 * time.Millisecond,
		},
	})

	return NewRouter(svcs, Deps{}, testEventID, logger), st
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))

	return v
}

func TestReserveReleaseFlow(t *testing.T) {
	r, _ := newTestRouter(t, 500)

	w := do(r, http.MethodPost, "/reservations", `{"partnerId":"partnerA","seats":10}`)
	require.Equal(t, http.StatusCreated, w.Code)

	created := decode[ReserveResponse](t, w)
	require.Equal(t, 10, created.Seats)
	require.Equal(t, domain.ReservationConfirmed, created.Status)
	_, err := uuid.Parse(created.ReservationID)
	require.NoError(t, err)

	w = do(r, http.MethodGet, "/reservations", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[domain.EventSummary](t, w)
	require.Equal(t, 490, summary.AvailableSeats)
	require.Equal(t, int64(1), summary.Version)
	require.Equal(t, int64(1), summary.ReservationCount)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	w = do(r, http.MethodGet, "/reservations", "", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, w.Code)

	w = do(r, http.MethodDelete, "/reservations/"+created.ReservationID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodDelete, "/reservations/"+created.ReservationID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found_or_already_released", decode[ErrorResponse](t, w).Code)

	w = do(r, http.MethodGet, "/events/"+testEventID+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary = decode[domain.EventSummary](t, w)
	require.Equal(t, 500, summary.AvailableSeats)
	require.Equal(t, int64(2), summary.Version)
	require.Zero(t, summary.ReservationCount)
}

// stubIdempotency mirrors the Redis store's lock and replay states.
type stubIdempotency struct {
	mu       sync.Mutex
	locked   map[string]bool
	saved    map[string]redisrepo.IdemResult
	released []string
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{
		locked: make(map[string]bool),
		saved:  make(map[string]redisrepo.IdemResult),
	}
}

func (s *stubIdempotency) Begin(_ context.Context, key string) (redisrepo.IdemState, redisrepo.IdemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.saved[key]; ok {
		return redisrepo.IdemReplay, res, nil
	}
	if s.locked[key] {
		return redisrepo.IdemInProgress, redisrepo.IdemResult{}, nil
	}
	s.locked[key] = true

	return redisrepo.IdemAcquired, redisrepo.IdemResult{}, nil
}

func (s *stubIdempotency) SaveResult(_ context.Context, key string, status int, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locked, key)
	s.saved[key] = redisrepo.IdemResult{Status: status, Body: body}

	return nil
}

func (s *stubIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locked, key)
	s.released = append(s.released, key)

	return nil
}

// brokenLedger never manages to write a reservation.
type brokenLedger struct {
	repository.ReservationLedger
}

func (brokenLedger) Create(context.Context, domain.Reservation) error {
	return repository.ErrTransient
}

func TestReserve_IdempotencyKeyKeptWhenReconciliationRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := memory.NewStorage()
	_, err := st.Inventory.SeedIfAbsent(ctx, testEventID, "Node.js Meet-up", 10)
	require.NoError(t, err)
	st.Ledger = brokenLedger{ReservationLedger: st.Ledger}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(st, nil, nil, logger, service.Config{
		Reservation: reservation.Config{
			ReleaseBackoffInitial: time.Millisecond,
			ReleaseBackoffMax:     2 * time.Millisecond,
		},
	})
	idem := newStubIdempotency()
	r := NewRouter(svcs, Deps{Idempotency: idem}, testEventID, logger)

	body := `{"partnerId":"partnerA","seats":3}`

	w := do(r, http.MethodPost, "/reservations", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "reconciliation_required", decode[ErrorResponse](t, w).Code)

	// a retry replays the outcome and leaves the pool alone
	w = do(r, http.MethodPost, "/reservations", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "reconciliation_required", decode[ErrorResponse](t, w).Code)
	require.Equal(t, "k1", w.Header().Get("Idempotency-Key"))

	inv, err := st.Inventory.Get(ctx, testEventID)
	require.NoError(t, err)
	require.Equal(t, 7, inv.AvailableSeats)
	require.Equal(t, int64(1), inv.Version)
	require.Empty(t, idem.released)

	// other failures free the key for a retry
	w = do(r, http.MethodPost, "/reservations", `{"partnerId":"partnerA","seats":9}`, "Idempotency-Key", "k2")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, []string{redisrepo.KeyIdemReservation("partnerA", "k2")}, idem.released)
}

func TestReserve_IdempotentReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := memory.NewStorage()
	_, err := st.Inventory.SeedIfAbsent(ctx, testEventID, "Node.js Meet-up", 10)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(st, nil, nil, logger, service.Config{})
	r := NewRouter(svcs, Deps{Idempotency: newStubIdempotency()}, testEventID, logger)

	body := `{"partnerId":"partnerA","seats":2}`

	w := do(r, http.MethodPost, "/reservations", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[ReserveResponse](t, w)

	w = do(r, http.MethodPost, "/reservations", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, first, decode[ReserveResponse](t, w))

	inv, err := st.Inventory.Get(ctx, testEventID)
	require.NoError(t, err)
	require.Equal(t, 8, inv.AvailableSeats)
}

func TestReserve_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "zero seats", body: `{"partnerId":"partnerA","seats":0}`, code: "validation_error"},
		{name: "too many seats", body: `{"partnerId":"partnerA","seats":11}`, code: "validation_error"},
		{name: "missing partner", body: `{"seats":1}`, code: "validation_error"},
		{name: "malformed json", body: `{"partnerId":`, code: "bad_request"},
		{name: "wrong type", body: `{"partnerId":"partnerA","seats":"two"}`, code: "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, st := newTestRouter(t, 500)

			w := do(r, http.MethodPost, "/reservations", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)

			inv, err := st.Inventory.Get(context.Background(), testEventID)
			require.NoError(t, err)
			require.Zero(t, inv.Version)
		})
	}
}

func TestReserve_Capacity(t *testing.T) {
	r, _ := newTestRouter(t, 3)

	w := do(r, http.MethodPost, "/reservations", `{"partnerId":"partnerA","seats":4}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "capacity_exceeded", decode[ErrorResponse](t, w).Code)
}

func TestRelease_BadIDs(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	w := do(r, http.MethodDelete, "/reservations/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/reservations/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummary_UnknownEvent(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	w := do(r, http.MethodGet, "/events/nope/summary", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "event_not_found", decode[ErrorResponse](t, w).Code)
}

func TestAdminEndpoints(t *testing.T) {
	r, st := newTestRouter(t, 10)
	ctx := context.Background()

	w := do(r, http.MethodGet, "/admin/consistency", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[domain.ConsistencyReport](t, w).Consistent)

	_, err := st.Inventory.ConditionalAdjust(ctx, testEventID, 0, -2)
	require.NoError(t, err)
	inc := domain.Incident{
		ID:            uuid.New(),
		Kind:          domain.IncidentReservationWriteFailed,
		Status:        domain.IncidentOpen,
		EventID:       testEventID,
		ReservationID: uuid.New(),
		PartnerID:     "partnerA",
		Seats:         2,
		EventVersion:  1,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.Incidents.Record(ctx, inc))

	w = do(r, http.MethodGet, "/admin/consistency", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, decode[domain.ConsistencyReport](t, w).Consistent)

	w = do(r, http.MethodGet, "/admin/incidents?status=open", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[IncidentListResponse](t, w).Incidents, 1)

	w = do(r, http.MethodGet, "/admin/incidents?status=bogus", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/admin/incidents/"+inc.ID.String()+"/resolve", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/admin/incidents/"+inc.ID.String()+"/resolve", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/admin/consistency", "")
	require.True(t, decode[domain.ConsistencyReport](t, w).Consistent)
}

func TestRespondErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err        error
		status     int
		retryAfter bool
	}{
		{err: reservation.ValidationError{Field: "seats", Reason: "x"}, status: http.StatusBadRequest},
		{err: reservation.CapacityError{Requested: 5, Available: 1}, status: http.StatusUnprocessableEntity},
		{err: reservation.ErrConcurrencyConflict, status: http.StatusConflict, retryAfter: true},
		{err: reservation.ErrNotFoundOrAlreadyReleased, status: http.StatusNotFound},
		{err: reservation.ErrEventNotFound, status: http.StatusNotFound},
		{err: reservation.ErrReconciliationRequired, status: http.StatusInternalServerError},
		{err: fmt.Errorf("%w: %w", reservation.ErrStoreFailure, repository.ErrTransient), status: http.StatusInternalServerError},
		{err: admin.ErrIncidentNotFound, status: http.StatusNotFound},
		{err: admin.ErrRepairFailed, status: http.StatusInternalServerError},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondErr(c, fmt.Errorf("op:%w", tt.err))

			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.retryAfter, w.Header().Get("Retry-After") != "")
		})
	}
}

func TestEtagMatches(t *testing.T) {
	require.True(t, etagMatches(`"a", W/"b"`, `W/"b"`))
	require.True(t, etagMatches(`"b"`, `W/"b"`))
	require.True(t, etagMatches(`*`, `W/"b"`))
	require.False(t, etagMatches(``, `W/"b"`))
	require.False(t, etagMatches(`"c"`, `W/"b"`))
}
