package entity

import (
	"time"
)

type ResourceKind string

const (
	ResourceKindRoom   ResourceKind = "ROOM"
	ResourceKindLocker ResourceKind = "LOCKER"
)

type ResourceTier string

const (
	ResourceTierStandard ResourceTier = "STANDARD"
	ResourceTierDouble   ResourceTier = "DOUBLE"
	ResourceTierSpecial  ResourceTier = "SPECIAL"
	ResourceTierLocker   ResourceTier = "LOCKER"
)

type ResourceStatus string

const (
	ResourceStatusClean    ResourceStatus = "CLEAN"
	ResourceStatusDirty    ResourceStatus = "DIRTY"
	ResourceStatusCleaning ResourceStatus = "CLEANING"
	ResourceStatusOccupied ResourceStatus = "OCCUPIED"
)

// Resource is a rentable physical unit: a room or a locker. An occupied
// resource always references its occupant; an unassigned resource is never
// OCCUPIED. The store enforces this pairing on every write.
type Resource struct {
	ID         int64          `json:"id" db:"id"`
	Number     string         `json:"number" db:"number"`
	Kind       ResourceKind   `json:"kind" db:"kind"`
	Tier       ResourceTier   `json:"tier" db:"tier"`
	Status     ResourceStatus `json:"status" db:"status"`
	OccupantID *int64         `json:"occupant_id,omitempty" db:"occupant_id"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

func ValidResourceTier(t ResourceTier) bool {
	switch t {
	case ResourceTierStandard, ResourceTierDouble, ResourceTierSpecial, ResourceTierLocker:
		return true
	}
	return false
}

func ValidResourceStatus(s ResourceStatus) bool {
	switch s {
	case ResourceStatusClean, ResourceStatusDirty, ResourceStatusCleaning, ResourceStatusOccupied:
		return true
	}
	return false
}
