package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/lib/pq"
)

type waitlistRepository struct {
	db *sql.DB
}

func NewWaitlistRepository(db *sql.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

// pq error codes that mean the offer lost a race: a serialization failure
// under SERIALIZABLE, or the partial unique index on reserved resources.
func isOfferConflict(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "40001" || pqErr.Code == "23505"
	}
	return false
}

func (r *waitlistRepository) Create(ctx context.Context, entry *entity.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (visit_id, desired_tier, backup_tier, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	entry.Status = entity.WaitlistStatusActive

	err := r.db.QueryRowContext(ctx, query,
		entry.VisitID,
		entry.DesiredTier,
		entry.BackupTier,
		entry.Status,
		now,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	entry.CreatedAt = now
	return nil
}

func (r *waitlistRepository) GetByID(ctx context.Context, id int64) (*entity.WaitlistEntry, error) {
	query := `
		SELECT id, visit_id, desired_tier, backup_tier, status, resource_id,
		       created_at, offered_at, completed_at
		FROM waitlist_entries
		WHERE id = $1
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return entry, nil
}

func (r *waitlistRepository) List(ctx context.Context, statuses []entity.WaitlistStatus) ([]*entity.WaitlistEntryView, error) {
	query := `
		SELECT w.id, w.visit_id, w.desired_tier, w.backup_tier, w.status, w.resource_id,
		       w.created_at, w.offered_at, w.completed_at, r.number
		FROM waitlist_entries w
		LEFT JOIN resources r ON r.id = w.resource_id
		WHERE w.status = ANY($1)
		ORDER BY w.created_at ASC
	`

	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	defer rows.Close()

	var views []*entity.WaitlistEntryView
	for rows.Next() {
		var v entity.WaitlistEntryView
		err := rows.Scan(
			&v.ID,
			&v.VisitID,
			&v.DesiredTier,
			&v.BackupTier,
			&v.Status,
			&v.ResourceID,
			&v.CreatedAt,
			&v.OfferedAt,
			&v.CompletedAt,
			&v.ResourceNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		views = append(views, &v)
	}

	return views, rows.Err()
}

// Offer runs at the strongest isolation the database provides. The explicit
// reserved-count check plus the partial unique index guarantee that of two
// concurrent offers for one resource, exactly one commits; the other gets
// entity.ErrResourceConflict with nothing written.
func (r *waitlistRepository) Offer(ctx context.Context, entryID, resourceID int64) (*entity.WaitlistEntry, string, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, visit_id, desired_tier, backup_tier, status, resource_id,
		       created_at, offered_at, completed_at
		FROM waitlist_entries
		WHERE id = $1
	`
	entry, err := scanEntry(tx.QueryRowContext(ctx, query, entryID))
	if err == sql.ErrNoRows {
		return nil, "", entity.ErrEntryNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get waitlist entry: %w", err)
	}

	if entry.Status != entity.WaitlistStatusActive {
		return nil, "", entity.ErrEntryNotActive
	}

	var number string
	var resourceStatus entity.ResourceStatus
	query = `SELECT number, status FROM resources WHERE id = $1`
	err = tx.QueryRowContext(ctx, query, resourceID).Scan(&number, &resourceStatus)
	if err == sql.ErrNoRows {
		return nil, "", entity.ErrResourceNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get resource: %w", err)
	}

	// Mirror the Offerable predicate: only CLEAN resources may be bound.
	if resourceStatus == entity.ResourceStatusOccupied {
		return nil, "", entity.ErrResourceOccupied
	}
	if resourceStatus != entity.ResourceStatusClean {
		return nil, "", entity.ErrResourceNotClean
	}

	var reserved int
	query = `
		SELECT COUNT(*) FROM waitlist_entries
		WHERE resource_id = $1 AND status IN ('ACTIVE', 'OFFERED') AND id <> $2
	`
	err = tx.QueryRowContext(ctx, query, resourceID, entryID).Scan(&reserved)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check resource reservation: %w", err)
	}
	if reserved > 0 {
		return nil, "", entity.ErrResourceConflict
	}

	now := time.Now()
	query = `
		UPDATE waitlist_entries
		SET status = $1, resource_id = $2, offered_at = $3
		WHERE id = $4
	`
	if _, err := tx.ExecContext(ctx, query, entity.WaitlistStatusOffered, resourceID, now, entryID); err != nil {
		if isOfferConflict(err) {
			return nil, "", entity.ErrResourceConflict
		}
		return nil, "", fmt.Errorf("failed to bind resource: %w", err)
	}

	if err := tx.Commit(); err != nil {
		// A serialization abort at commit means this offer lost the race.
		// The caller must re-query offerable resources, not retry blindly.
		if isOfferConflict(err) {
			return nil, "", entity.ErrResourceConflict
		}
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Status = entity.WaitlistStatusOffered
	entry.ResourceID = &resourceID
	entry.OfferedAt = &now

	return entry, number, nil
}

func (r *waitlistRepository) Offerable(ctx context.Context, tier entity.ResourceTier) ([]*entity.Resource, error) {
	query := `
		SELECT r.id, r.number, r.kind, r.tier, r.status, r.occupant_id, r.created_at, r.updated_at
		FROM resources r
		WHERE r.tier = $1
		  AND r.status = 'CLEAN'
		  AND NOT EXISTS (
			SELECT 1 FROM waitlist_entries w
			WHERE w.resource_id = r.id AND w.status IN ('ACTIVE', 'OFFERED')
		  )
		ORDER BY r.number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerable resources: %w", err)
	}
	defer rows.Close()

	var resources []*entity.Resource
	for rows.Next() {
		var res entity.Resource
		err := rows.Scan(
			&res.ID,
			&res.Number,
			&res.Kind,
			&res.Tier,
			&res.Status,
			&res.OccupantID,
			&res.CreatedAt,
			&res.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, &res)
	}

	return resources, rows.Err()
}

func (r *waitlistRepository) Finalize(ctx context.Context, id int64, status entity.WaitlistStatus) (*entity.WaitlistEntry, *int64, error) {
	if !status.Terminal() {
		return nil, nil, entity.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, visit_id, desired_tier, backup_tier, status, resource_id,
		       created_at, offered_at, completed_at
		FROM waitlist_entries
		WHERE id = $1
	`
	entry, err := scanEntry(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil, entity.ErrEntryNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}

	if entry.Status.Terminal() {
		return nil, nil, entity.ErrEntryTerminal
	}

	released := entry.ResourceID

	now := time.Now()
	query = `
		UPDATE waitlist_entries
		SET status = $1, completed_at = $2
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, query, status, now, id); err != nil {
		return nil, nil, fmt.Errorf("failed to finalize waitlist entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isOfferConflict(err) {
			return nil, nil, entity.ErrResourceConflict
		}
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Status = status
	entry.CompletedAt = &now

	return entry, released, nil
}

func scanEntry(row *sql.Row) (*entity.WaitlistEntry, error) {
	var entry entity.WaitlistEntry
	err := row.Scan(
		&entry.ID,
		&entry.VisitID,
		&entry.DesiredTier,
		&entry.BackupTier,
		&entry.Status,
		&entry.ResourceID,
		&entry.CreatedAt,
		&entry.OfferedAt,
		&entry.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
