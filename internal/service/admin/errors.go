package admin

import (
	"errors"
)

var (
	ErrIncidentNotFound = errors.New("incident not found or already resolved")
	ErrInvalidStatus    = errors.New("invalid incident status")
	ErrEventNotFound    = errors.New("event not found")
	ErrRepairFailed     = errors.New("incident repair failed")
)
