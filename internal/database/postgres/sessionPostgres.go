package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/lib/pq"
)

type sessionRepository struct {
	db *sql.DB
}

// A unique violation on the open-lane partial index means another start
// for the same lane committed first.
func isStartConflict(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionViewQuery = `
	SELECT s.id, s.lane, s.status, s.staff_id, s.customer_id, s.desired_tier, s.backup_tier,
	       s.resource_id, s.price_quote_cents, s.payment_ref, s.confirm_locked, s.kiosk_acked_at,
	       s.created_at, s.updated_at, r.number, c.name
	FROM lane_sessions s
	LEFT JOIN resources r ON r.id = s.resource_id
	LEFT JOIN customers c ON c.id = s.customer_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionView(row rowScanner) (*entity.LaneSessionView, error) {
	var v entity.LaneSessionView
	err := row.Scan(
		&v.ID,
		&v.Lane,
		&v.Status,
		&v.StaffID,
		&v.CustomerID,
		&v.DesiredTier,
		&v.BackupTier,
		&v.ResourceID,
		&v.PriceQuoteCents,
		&v.PaymentRef,
		&v.ConfirmLocked,
		&v.KioskAckedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.ResourceNumber,
		&v.CustomerName,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// lockCurrent takes a row lock on the latest session for the lane. The
// row-level lock gives one lane a total order over concurrent mutations
// from the kiosk and the register.
func lockCurrent(ctx context.Context, tx *sql.Tx, lane string) (int64, entity.SessionStatus, error) {
	query := `
		SELECT id, status FROM lane_sessions
		WHERE lane = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`

	var id int64
	var status entity.SessionStatus
	err := tx.QueryRowContext(ctx, query, lane).Scan(&id, &status)
	if err == sql.ErrNoRows {
		return 0, "", entity.ErrSessionNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to lock lane session: %w", err)
	}
	return id, status, nil
}

func (r *sessionRepository) viewByID(ctx context.Context, q rowQuerier, id int64) (*entity.LaneSessionView, error) {
	view, err := scanSessionView(q.QueryRowContext(ctx, sessionViewQuery+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session view: %w", err)
	}
	return view, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *sessionRepository) Create(ctx context.Context, lane string, staffID int64, desired, backup *entity.ResourceTier) (*entity.LaneSessionView, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, status, err := lockCurrent(ctx, tx, lane)
	if err != nil && err != entity.ErrSessionNotFound {
		return nil, err
	}
	if err == nil && !status.Terminal() {
		return nil, entity.ErrSessionActive
	}

	now := time.Now()
	query := `
		INSERT INTO lane_sessions (lane, status, staff_id, desired_tier, backup_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	var id int64
	err = tx.QueryRowContext(ctx, query, lane, entity.SessionStatusActive, staffID, desired, backup, now).Scan(&id)
	if err != nil {
		// The row lock above only covers rows its statement snapshot could
		// see. A start that raced past it lands on the open-lane partial
		// unique index instead.
		if isStartConflict(err) {
			return nil, entity.ErrSessionActive
		}
		return nil, fmt.Errorf("failed to create lane session: %w", err)
	}

	view, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isStartConflict(err) {
			return nil, entity.ErrSessionActive
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}

func (r *sessionRepository) Current(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	query := sessionViewQuery + `
		WHERE s.lane = $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT 1
	`

	view, err := scanSessionView(r.db.QueryRowContext(ctx, query, lane))
	if err == sql.ErrNoRows {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lane session: %w", err)
	}
	return view, nil
}

func (r *sessionRepository) Advance(ctx context.Context, lane string, to entity.SessionStatus, patch SessionPatch) (*entity.LaneSessionView, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, status, err := lockCurrent(ctx, tx, lane)
	if err != nil {
		return nil, err
	}
	if status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}
	if !entity.CanTransition(status, to) {
		return nil, entity.ErrBadTransition
	}

	current, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// Full-overwrite write-back: the locked row plus the patch becomes the
	// new row, so a stale actor can never clobber single fields.
	next := current.LaneSession
	if patch.CustomerID != nil {
		next.CustomerID = patch.CustomerID
	}
	if patch.DesiredTier != nil {
		next.DesiredTier = patch.DesiredTier
	}
	if patch.BackupTier != nil {
		next.BackupTier = patch.BackupTier
	}
	if patch.ResourceID != nil {
		next.ResourceID = patch.ResourceID
	}
	if patch.PriceQuoteCents != nil {
		next.PriceQuoteCents = patch.PriceQuoteCents
	}
	if patch.PaymentRef != nil {
		next.PaymentRef = patch.PaymentRef
	}
	if patch.ConfirmLocked != nil {
		next.ConfirmLocked = *patch.ConfirmLocked
	}

	query := `
		UPDATE lane_sessions
		SET status = $1, customer_id = $2, desired_tier = $3, backup_tier = $4,
		    resource_id = $5, price_quote_cents = $6, payment_ref = $7,
		    confirm_locked = $8, updated_at = $9
		WHERE id = $10
	`
	_, err = tx.ExecContext(ctx, query,
		to,
		next.CustomerID,
		next.DesiredTier,
		next.BackupTier,
		next.ResourceID,
		next.PriceQuoteCents,
		next.PaymentRef,
		next.ConfirmLocked,
		time.Now(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to advance lane session: %w", err)
	}

	view, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}

func (r *sessionRepository) KioskAck(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, status, err := lockCurrent(ctx, tx, lane)
	if err != nil {
		return nil, err
	}
	if status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}

	// Acknowledge only: the kiosk goes back to its idle screen while the
	// register still owns the live transaction. Status and every other
	// field stay untouched.
	query := `UPDATE lane_sessions SET kiosk_acked_at = $1, updated_at = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, time.Now(), id); err != nil {
		return nil, fmt.Errorf("failed to acknowledge session: %w", err)
	}

	view, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}

func (r *sessionRepository) Reset(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, status, err := lockCurrent(ctx, tx, lane)
	if err != nil {
		return nil, err
	}
	if status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}

	// Terminal overwrite from any prior state: repeated resets converge to
	// the same snapshot, so neither actor can observe a half-cleared row.
	query := `
		UPDATE lane_sessions
		SET status = $1, customer_id = NULL, desired_tier = NULL, backup_tier = NULL,
		    resource_id = NULL, price_quote_cents = NULL, payment_ref = NULL,
		    confirm_locked = FALSE, kiosk_acked_at = NULL, updated_at = $2
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, query, entity.SessionStatusCompleted, time.Now(), id); err != nil {
		return nil, fmt.Errorf("failed to reset lane session: %w", err)
	}

	view, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}

func (r *sessionRepository) Cancel(ctx context.Context, lane string) (*entity.LaneSessionView, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, status, err := lockCurrent(ctx, tx, lane)
	if err != nil {
		return nil, err
	}
	if status == entity.SessionStatusCancelled {
		return nil, entity.ErrSessionNotFound
	}
	if status == entity.SessionStatusCompleted {
		return nil, entity.ErrBadTransition
	}

	query := `UPDATE lane_sessions SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.SessionStatusCancelled, time.Now(), id); err != nil {
		return nil, fmt.Errorf("failed to cancel lane session: %w", err)
	}

	view, err := r.viewByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}
