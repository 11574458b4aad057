package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, name, email, balance_cents, banned, note, created_at, updated_at`

func scanCustomer(row rowScanner) (*entity.Customer, error) {
	var c entity.Customer
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.BalanceCents,
		&c.Banned,
		&c.Note,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (r *customerRepository) Update(ctx context.Context, id int64, patch CustomerPatch) (*entity.Customer, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 FOR UPDATE`
	c, err := scanCustomer(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock customer: %w", err)
	}

	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.BalanceCents != nil {
		c.BalanceCents = *patch.BalanceCents
	}
	if patch.Banned != nil {
		c.Banned = *patch.Banned
	}
	if patch.Note != nil {
		c.Note = *patch.Note
	}

	now := time.Now()
	update := `
		UPDATE customers
		SET name = $1, email = $2, balance_cents = $3, banned = $4, note = $5, updated_at = $6
		WHERE id = $7
	`
	if _, err := tx.ExecContext(ctx, update, c.Name, c.Email, c.BalanceCents, c.Banned, c.Note, now, id); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.UpdatedAt = now
	return c, nil
}
