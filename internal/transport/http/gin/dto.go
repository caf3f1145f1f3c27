package httpgin

import "github.com/kirinyoku/tix-seats/internal/domain"

type ReserveRequest struct {
	PartnerID string `json:"partnerId" example:"partner-a"`
	Seats     int    `json:"seats" example:"2"`
}

type ReserveResponse struct {
	ReservationID string                   `json:"reservationId"`
	Seats         int                      `json:"seats"`
	Status        domain.ReservationStatus `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type IncidentListResponse struct {
	Incidents []domain.Incident `json:"incidents"`
}
