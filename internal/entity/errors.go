package entity

import "errors"

var (
	// Session errors
	ErrSessionNotFound  = errors.New("no active session for lane")
	ErrSessionActive    = errors.New("lane already has a session in progress")
	ErrBadTransition    = errors.New("illegal session transition")
	ErrSessionCancelled = errors.New("session has been cancelled")

	// Waitlist / resource errors
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrEntryNotActive    = errors.New("waitlist entry is not active")
	ErrEntryTerminal     = errors.New("waitlist entry already finalized")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrResourceConflict  = errors.New("resource already reserved by another entry")
	ErrResourceOccupied  = errors.New("resource is occupied")
	ErrResourceNotClean  = errors.New("resource is not ready to be offered")
	ErrOccupancyMismatch = errors.New("occupant assignment does not match resource status")

	// Customer errors
	ErrCustomerNotFound = errors.New("customer not found")

	// Auth errors
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden operation")
	ErrReauthRequired    = errors.New("step-up re-authentication required")
	ErrReauthExpired     = errors.New("step-up re-authentication expired")
	ErrChallengeNotFound = errors.New("step-up challenge not found or already used")
	ErrBadPin            = errors.New("step-up pin rejected")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
