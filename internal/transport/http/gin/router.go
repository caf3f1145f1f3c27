package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisrepo "github.com/kirinyoku/tix-seats/internal/repository/redis"
	"github.com/kirinyoku/tix-seats/internal/service"
	"github.com/kirinyoku/tix-seats/internal/service/admin"
	"github.com/kirinyoku/tix-seats/internal/service/query"
	"github.com/kirinyoku/tix-seats/internal/service/reservation"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// IdempotencyStore holds Idempotency-Key locks and stored responses.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (redisrepo.IdemState, redisrepo.IdemResult, error)
	SaveResult(ctx context.Context, key string, status int, jsonBody string) error
	Release(ctx context.Context, key string) error
}

// Deps are the optional Redis-backed request guards. Nil fields switch the
// corresponding behaviour off.
type Deps struct {
	Idempotency IdempotencyStore
	Limiter     *redisrepo.SlidingWindowLimiter
}

var reconciliationResponse = ErrorResponse{
	Error: "reservation requires reconciliation",
	Code:  "reconciliation_required",
}

func NewRouter(
	svcs *service.Services,
	deps Deps,
	eventID string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/reservations", handleReserve(svcs, deps, eventID, logger))
	r.DELETE("/reservations/:reservationId", handleRelease(svcs))
	r.GET("/reservations", handleGetSummary(svcs, eventID))
	r.GET("/events/:eventId/summary", handleGetSummary(svcs, ""))

	// Admin API
	adm := r.Group("/admin")
	{
		adm.GET("/consistency", handleConsistency(svcs, eventID))
		adm.GET("/incidents", handleListIncidents(svcs))
		adm.POST("/incidents/:id/resolve", handleResolveIncident(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Reserve seats (idempotent)
// @Param    req body  ReserveRequest true "payload"
// @Param    Idempotency-Key header string false "replay key"
// @Success  201 {object} ReserveResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "event not found"
// @Failure  409 {object} ErrorResponse "concurrent modification / idem in progress"
// @Failure  422 {object} ErrorResponse "not enough seats"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  500 {object} ErrorResponse
// @Router   /reservations [post]
func handleReserve(
	svcs *service.Services,
	deps Deps,
	eventID string,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		partnerID := strings.TrimSpace(req.PartnerID)
		c.Set("partner_id", partnerID)

		if deps.Limiter != nil && partnerID != "" {
			allowed, retry, err := deps.Limiter.Allow(c.Request.Context(), partnerID)
			if err != nil {
				logger.Warn("rate limiter unavailable", slog.Any("error", err))
			} else if !allowed {
				c.Header("Retry-After", retryAfterSeconds(retry))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error: "rate limit exceeded",
					Code:  "rate_limited",
				})
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if deps.Idempotency != nil && idemKey != "" && partnerID != "" {
			idemStorageKey = redisrepo.KeyIdemReservation(partnerID, idemKey)

			state, replay, err := deps.Idempotency.Begin(c.Request.Context(), idemStorageKey)
			if err != nil {
				respondErr(c, err)
				return
			}

			switch state {
			case redisrepo.IdemReplay:
				status := replay.Status
				if status == 0 {
					status = http.StatusCreated
				}
				c.Header("Idempotency-Key", idemKey)
				c.Data(status, "application/json; charset=utf-8", []byte(replay.Body))
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{
					Error: "idempotency key in progress",
					Code:  "idempotency_in_progress",
				})
				return
			}
		}

		res, err := svcs.Reservation.Reserve(c.Request.Context(), eventID, partnerID, req.Seats)
		if err != nil {
			if idemStorageKey != "" {
				idemCtx := context.WithoutCancel(c.Request.Context())
				if errors.Is(err, reservation.ErrReconciliationRequired) {
					// the seats stay debited until repair; a retry under this
					// key must not debit them again
					b, _ := json.Marshal(reconciliationResponse)
					if serr := deps.Idempotency.SaveResult(idemCtx, idemStorageKey, http.StatusInternalServerError, string(b)); serr != nil {
						logger.Error("failed to store idempotent result",
							slog.String("partner_id", partnerID), slog.Any("error", serr))
					}
					c.Header("Idempotency-Key", idemKey)
				} else {
					_ = deps.Idempotency.Release(idemCtx, idemStorageKey)
				}
			}
			respondErr(c, err)
			return
		}

		resp := ReserveResponse{
			ReservationID: res.ReservationID.String(),
			Seats:         res.Seats,
			Status:        res.Status,
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = deps.Idempotency.SaveResult(c.Request.Context(), idemStorageKey, http.StatusCreated, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Release a reservation
// @Param    reservationId  path  string  true  "Reservation ID (uuid)"
// @Success  204  "released"
// @Failure  404 {object} ErrorResponse "not found or already released"
// @Failure  500 {object} ErrorResponse
// @Router   /reservations/{reservationId} [delete]
func handleRelease(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "reservationId")
		if !ok {
			return
		}

		if err := svcs.Reservation.Release(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary  Event inventory summary
// @Param    eventId  path  string  false  "Event ID; the configured event on /reservations"
// @Success  200 {object} domain.EventSummary
// @Failure  404 {object} ErrorResponse
// @Router   /events/{eventId}/summary [get]
// @Router   /reservations [get]
func handleGetSummary(svcs *service.Services, fixedEventID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := fixedEventID
		if eventID == "" {
			eventID = c.Param("eventId")
		}

		s, err := svcs.Query.GetSummary(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 2s
		writeJSONWithCache(c, http.StatusOK, s, "public, max-age=2", true)
	}
}

// @Summary  Compare inventory debit with confirmed reservations
// @Success  200 {object} domain.ConsistencyReport
// @Router   /admin/consistency [get]
func handleConsistency(svcs *service.Services, eventID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svcs.Admin.CheckConsistency(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary  List reconciliation incidents
// @Param    status query  string  false "open | resolved"
// @Param    limit  query  int     false "page size"
// @Success  200 {object} IncidentListResponse
// @Router   /admin/incidents [get]
func handleListIncidents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 0)

		list, err := svcs.Admin.ListIncidents(c.Request.Context(), c.Query("status"), limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, IncidentListResponse{Incidents: list})
	}
}

// @Summary  Repair and resolve an incident
// @Param    id  path  string  true  "Incident ID (uuid)"
// @Success  200 {object} domain.Incident
// @Failure  404 {object} ErrorResponse
// @Failure  500 {object} ErrorResponse
// @Router   /admin/incidents/{id}/resolve [post]
func handleResolveIncident(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		inc, err := svcs.Admin.ResolveIncident(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, inc)
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var verr reservation.ValidationError

	switch {
	// reservation service
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "validation_error"})
	case errors.Is(err, reservation.ErrCapacity):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "not enough seats available", Code: "capacity_exceeded"})
	case errors.Is(err, reservation.ErrConcurrencyConflict):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "inventory changed concurrently, retry", Code: "concurrency_conflict"})
	case errors.Is(err, reservation.ErrNotFoundOrAlreadyReleased):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found or already released", Code: "not_found_or_already_released"})
	case errors.Is(err, reservation.ErrEventNotFound),
		errors.Is(err, query.ErrEventNotFound),
		errors.Is(err, admin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found", Code: "event_not_found"})
	case errors.Is(err, reservation.ErrReconciliationRequired):
		c.JSON(http.StatusInternalServerError, reconciliationResponse)
	case errors.Is(err, reservation.ErrStoreFailure):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "store failure", Code: "store_failure"})
	// admin service
	case errors.Is(err, admin.ErrIncidentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "incident not found or already resolved", Code: "incident_not_found"})
	case errors.Is(err, admin.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be open or resolved", Code: "bad_request"})
	case errors.Is(err, admin.ErrRepairFailed):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "incident repair failed", Code: "repair_failed"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}

	if c.Writer.Status() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
}
