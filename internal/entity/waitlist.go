package entity

import (
	"time"
)

type WaitlistStatus string

const (
	WaitlistStatusActive    WaitlistStatus = "ACTIVE"
	WaitlistStatusOffered   WaitlistStatus = "OFFERED"
	WaitlistStatusCompleted WaitlistStatus = "COMPLETED"
	WaitlistStatusCancelled WaitlistStatus = "CANCELLED"
	WaitlistStatusExpired   WaitlistStatus = "EXPIRED"
)

// WaitlistEntry is one customer waiting for a resource of a desired tier.
// At most one non-terminal entry may reference a given resource: OFFERED
// entries bind exactly one resource, ACTIVE entries bind none.
type WaitlistEntry struct {
	ID          int64          `json:"id" db:"id"`
	VisitID     int64          `json:"visit_id" db:"visit_id"`
	DesiredTier ResourceTier   `json:"desired_tier" db:"desired_tier"`
	BackupTier  *ResourceTier  `json:"backup_tier,omitempty" db:"backup_tier"`
	Status      WaitlistStatus `json:"status" db:"status"`
	ResourceID  *int64         `json:"resource_id,omitempty" db:"resource_id"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	OfferedAt   *time.Time     `json:"offered_at,omitempty" db:"offered_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// Terminal reports whether the entry can no longer hold or receive a
// resource binding.
func (s WaitlistStatus) Terminal() bool {
	switch s {
	case WaitlistStatusCompleted, WaitlistStatusCancelled, WaitlistStatusExpired:
		return true
	}
	return false
}

// WaitlistEntryView joins an entry with the number of its bound resource
// for terminal display.
type WaitlistEntryView struct {
	WaitlistEntry
	ResourceNumber *string `json:"resource_number,omitempty" db:"resource_number"`
}
