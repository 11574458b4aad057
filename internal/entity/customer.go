package entity

import (
	"time"
)

// Customer is the admin-facing member record. Balance waives, bans and
// note edits go through the step-up gated admin endpoint.
type Customer struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	BalanceCents int64     `json:"balance_cents" db:"balance_cents"`
	Banned       bool      `json:"banned" db:"banned"`
	Note         string    `json:"note" db:"note"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// StaffSession is what the external auth system writes to Redis for a
// logged-in employee. This service only ever reads it.
type StaffSession struct {
	Token   string `json:"-"`
	StaffID int64  `json:"staff_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}
