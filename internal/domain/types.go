package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	return s == ReservationConfirmed || s == ReservationCancelled
}

// EventInventory is the capacity record of a single event. AvailableSeats
// and Version only ever change together, through a conditional update.
type EventInventory struct {
	EventID        string    `json:"eventId"`
	Name           string    `json:"name"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CanAdjust reports whether applying delta keeps AvailableSeats within
// [0, TotalSeats].
func (e EventInventory) CanAdjust(delta int) bool {
	next := e.AvailableSeats + delta
	return next >= 0 && next <= e.TotalSeats
}

// ReservedSeats is the number of seats currently debited from the pool.
func (e EventInventory) ReservedSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

type Reservation struct {
	ID           uuid.UUID         `json:"reservationId"`
	EventID      string            `json:"eventId"`
	PartnerID    string            `json:"partnerId"`
	Seats        int               `json:"seats"`
	Status       ReservationStatus `json:"status"`
	EventVersion int64             `json:"eventVersion"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type EventSummary struct {
	EventID          string `json:"eventId"`
	Name             string `json:"name"`
	TotalSeats       int    `json:"totalSeats"`
	AvailableSeats   int    `json:"availableSeats"`
	ReservationCount int64  `json:"reservationCount"`
	Version          int64  `json:"version"`
}

// ConsistencyReport compares the inventory debit with the seats held by
// confirmed reservations, read from one snapshot.
type ConsistencyReport struct {
	EventID        string `json:"eventId"`
	TotalSeats     int    `json:"totalSeats"`
	AvailableSeats int    `json:"availableSeats"`
	Version        int64  `json:"version"`
	ConfirmedSeats int64  `json:"confirmedSeats"`
	Consistent     bool   `json:"consistent"`
}

type IncidentKind string

const (
	// Seats were debited but the reservation record could not be written.
	IncidentReservationWriteFailed IncidentKind = "reservation_write_failed"
	// Seats were returned but the reservation is still marked confirmed.
	IncidentReleaseStatusFlipFailed IncidentKind = "release_status_flip_failed"
	// Seats were returned twice by concurrent releases and could not be re-debited.
	IncidentDoubleRelease IncidentKind = "double_release"
)

type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "open"
	IncidentResolved IncidentStatus = "resolved"
)

// Incident is an audit record of a state the controller could not make
// consistent on its own. The inventory is the source of truth; resolving an
// incident brings the ledger back in line with it.
type Incident struct {
	ID            uuid.UUID      `json:"id"`
	Kind          IncidentKind   `json:"kind"`
	Status        IncidentStatus `json:"status"`
	EventID       string         `json:"eventId"`
	ReservationID uuid.UUID      `json:"reservationId"`
	PartnerID     string         `json:"partnerId"`
	Seats         int            `json:"seats"`
	EventVersion  int64          `json:"eventVersion"`
	Detail        string         `json:"detail"`
	CreatedAt     time.Time      `json:"createdAt"`
	ResolvedAt    *time.Time     `json:"resolvedAt,omitempty"`
}
