package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

type resourceRepository struct {
	db *sql.DB
}

func NewResourceRepository(db *sql.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

const resourceColumns = `id, number, kind, tier, status, occupant_id, created_at, updated_at`

func scanResource(row rowScanner) (*entity.Resource, error) {
	var res entity.Resource
	err := row.Scan(
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
		return nil, err
	}
	return &res, nil
}

func (r *resourceRepository) Create(ctx context.Context, resource *entity.Resource) error {
	query := `
		INSERT INTO resources (number, kind, tier, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`

	now := time.Now()
	if resource.Status == "" {
		resource.Status = entity.ResourceStatusClean
	}

	err := r.db.QueryRowContext(ctx, query,
		resource.Number,
		resource.Kind,
		resource.Tier,
		resource.Status,
		now,
	).Scan(&resource.ID)

	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	resource.CreatedAt = now
	resource.UpdatedAt = now
	return nil
}

func (r *resourceRepository) GetByID(ctx context.Context, id int64) (*entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	res, err := scanResource(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

func (r *resourceRepository) List(ctx context.Context, tier *entity.ResourceTier, status *entity.ResourceStatus) ([]*entity.Resource, error) {
	query := `
		SELECT ` + resourceColumns + ` FROM resources
		WHERE ($1::VARCHAR IS NULL OR tier = $1)
		  AND ($2::VARCHAR IS NULL OR status = $2)
		ORDER BY number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tier, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []*entity.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

func (r *resourceRepository) SetStatus(ctx context.Context, id int64, status entity.ResourceStatus) (*entity.Resource, error) {
	// OCCUPIED pairs with an occupant; it is only reachable through
	// AssignOccupant.
	if status == entity.ResourceStatusOccupied {
		return nil, entity.ErrOccupancyMismatch
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.OccupantID != nil {
		return nil, entity.ErrResourceOccupied
	}

	query := `UPDATE resources SET status = $1, updated_at = $2 WHERE id = $3`
	now := time.Now()
	if _, err := tx.ExecContext(ctx, query, status, now, id); err != nil {
		return nil, fmt.Errorf("failed to set resource status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	res.Status = status
	res.UpdatedAt = now
	return res, nil
}

func (r *resourceRepository) AssignOccupant(ctx context.Context, id, customerID int64) (*entity.Resource, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.OccupantID != nil {
		return nil, entity.ErrResourceOccupied
	}

	query := `UPDATE resources SET status = $1, occupant_id = $2, updated_at = $3 WHERE id = $4`
	now := time.Now()
	if _, err := tx.ExecContext(ctx, query, entity.ResourceStatusOccupied, customerID, now, id); err != nil {
		return nil, fmt.Errorf("failed to assign occupant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	res.Status = entity.ResourceStatusOccupied
	res.OccupantID = &customerID
	res.UpdatedAt = now
	return res, nil
}

func (r *resourceRepository) ReleaseOccupant(ctx context.Context, id int64) (*entity.Resource, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.OccupantID == nil {
		return nil, entity.ErrOccupancyMismatch
	}

	// Vacated units go straight to DIRTY: they need housekeeping before
	// they can be offered again.
	query := `UPDATE resources SET status = $1, occupant_id = NULL, updated_at = $2 WHERE id = $3`
	now := time.Now()
	if _, err := tx.ExecContext(ctx, query, entity.ResourceStatusDirty, now, id); err != nil {
		return nil, fmt.Errorf("failed to release occupant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	res.Status = entity.ResourceStatusDirty
	res.OccupantID = nil
	res.UpdatedAt = now
	return res, nil
}

func (r *resourceRepository) lock(ctx context.Context, tx *sql.Tx, id int64) (*entity.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1 FOR UPDATE`

	res, err := scanResource(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}
	return res, nil
}
