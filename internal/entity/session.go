package entity

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusActive             SessionStatus = "ACTIVE"
	SessionStatusAwaitingCustomer   SessionStatus = "AWAITING_CUSTOMER"
	SessionStatusAwaitingAssignment SessionStatus = "AWAITING_ASSIGNMENT"
	SessionStatusAwaitingPayment    SessionStatus = "AWAITING_PAYMENT"
	SessionStatusAwaitingSignature  SessionStatus = "AWAITING_SIGNATURE"
	SessionStatusCompleted          SessionStatus = "COMPLETED"
	SessionStatusCancelled          SessionStatus = "CANCELLED"
)

// LaneSession is the single in-progress check-in transaction for one
// physical lane (kiosk + register pair). There is no client-side source of
// truth: both actors mutate this row through transactional handlers and
// re-read it afterwards.
type LaneSession struct {
	ID              int64         `json:"id" db:"id"`
	Lane            string        `json:"lane" db:"lane"`
	Status          SessionStatus `json:"status" db:"status"`
	StaffID         *int64        `json:"staff_id,omitempty" db:"staff_id"`
	CustomerID      *int64        `json:"customer_id,omitempty" db:"customer_id"`
	DesiredTier     *ResourceTier `json:"desired_tier,omitempty" db:"desired_tier"`
	BackupTier      *ResourceTier `json:"backup_tier,omitempty" db:"backup_tier"`
	ResourceID      *int64        `json:"resource_id,omitempty" db:"resource_id"`
	PriceQuoteCents *int64        `json:"price_quote_cents,omitempty" db:"price_quote_cents"`
	PaymentRef      *string       `json:"payment_ref,omitempty" db:"payment_ref"`
	ConfirmLocked   bool          `json:"confirm_locked" db:"confirm_locked"`
	KioskAckedAt    *time.Time    `json:"kiosk_acked_at,omitempty" db:"kiosk_acked_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// LaneSessionView is the session joined with display data from the
// resource and customer rows. Handlers return it and SESSION_UPDATED
// events carry it, so every terminal renders from the same snapshot.
type LaneSessionView struct {
	LaneSession
	ResourceNumber *string `json:"resource_number,omitempty" db:"resource_number"`
	CustomerName   *string `json:"customer_name,omitempty" db:"customer_name"`
}

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

var sessionOrder = map[SessionStatus]SessionStatus{
	SessionStatusActive:             SessionStatusAwaitingCustomer,
	SessionStatusAwaitingCustomer:   SessionStatusAwaitingAssignment,
	SessionStatusAwaitingAssignment: SessionStatusAwaitingPayment,
	SessionStatusAwaitingPayment:    SessionStatusAwaitingSignature,
	SessionStatusAwaitingSignature:  SessionStatusCompleted,
}

// CanTransition reports whether a staff-driven transition from one status
// to the next is legal: one step forward along the check-in flow, or to
// CANCELLED from any non-terminal state. Reset bypasses this table: it
// is a full overwrite to COMPLETED from any state.
func CanTransition(from, to SessionStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == SessionStatusCancelled {
		return true
	}
	return sessionOrder[from] == to
}

func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusActive, SessionStatusAwaitingCustomer, SessionStatusAwaitingAssignment,
		SessionStatusAwaitingPayment, SessionStatusAwaitingSignature,
		SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}
