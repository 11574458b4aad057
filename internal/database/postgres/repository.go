package repository

import (
	"context"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// SessionPatch carries the optional field updates a staff terminal may
// attach to a forward transition. Nil fields are left untouched; the row is
// still rewritten in full inside the transaction.
type SessionPatch struct {
	CustomerID      *int64
	DesiredTier     *entity.ResourceTier
	BackupTier      *entity.ResourceTier
	ResourceID      *int64
	PriceQuoteCents *int64
	PaymentRef      *string
	ConfirmLocked   *bool
}

type SessionRepository interface {
	// Create opens a new ACTIVE session for the lane. Fails with
	// entity.ErrSessionActive while a non-terminal session exists.
	Create(ctx context.Context, lane string, staffID int64, desired, backup *entity.ResourceTier) (*entity.LaneSessionView, error)

	// Current returns the latest session row for the lane joined with
	// display data, regardless of status.
	Current(ctx context.Context, lane string) (*entity.LaneSessionView, error)

	// Advance performs a legality-checked forward transition and applies
	// the patch atomically.
	Advance(ctx context.Context, lane string, to entity.SessionStatus, patch SessionPatch) (*entity.LaneSessionView, error)

	// KioskAck stamps kiosk_acked_at without touching any other field.
	KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error)

	// Reset rewrites the current session to the COMPLETED terminal snapshot,
	// nulling every transaction-scoped field. Idempotent.
	Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error)

	// Cancel moves any non-terminal session to CANCELLED.
	Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error)
}

type WaitlistRepository interface {
	Create(ctx context.Context, entry *entity.WaitlistEntry) error
	GetByID(ctx context.Context, id int64) (*entity.WaitlistEntry, error)
	List(ctx context.Context, statuses []entity.WaitlistStatus) ([]*entity.WaitlistEntryView, error)

	// Offer binds an ACTIVE entry to an unreserved resource inside a
	// serializable transaction. The losing side of two concurrent offers
	// for one resource observes entity.ErrResourceConflict and no mutation.
	Offer(ctx context.Context, entryID, resourceID int64) (*entity.WaitlistEntry, string, error)

	// Offerable lists resources of the tier that are CLEAN and not bound
	// by any ACTIVE or OFFERED entry. Mirrors the write-path predicate.
	Offerable(ctx context.Context, tier entity.ResourceTier) ([]*entity.Resource, error)

	// Finalize moves a non-terminal entry to COMPLETED or CANCELLED and
	// implicitly releases its resource binding. Returns the released
	// resource id, if any.
	Finalize(ctx context.Context, id int64, status entity.WaitlistStatus) (*entity.WaitlistEntry, *int64, error)
}

type ResourceRepository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	GetByID(ctx context.Context, id int64) (*entity.Resource, error)
	List(ctx context.Context, tier *entity.ResourceTier, status *entity.ResourceStatus) ([]*entity.Resource, error)

	// SetStatus moves a resource between the housekeeping states. OCCUPIED
	// is only reachable through AssignOccupant.
	SetStatus(ctx context.Context, id int64, status entity.ResourceStatus) (*entity.Resource, error)
	AssignOccupant(ctx context.Context, id, customerID int64) (*entity.Resource, error)
	ReleaseOccupant(ctx context.Context, id int64) (*entity.Resource, error)
}

type CustomerPatch struct {
	Name         *string
	Email        *string
	BalanceCents *int64
	Banned       *bool
	Note         *string
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Customer, error)
	Update(ctx context.Context, id int64, patch CustomerPatch) (*entity.Customer, error)
}
