package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/joshuakessell/club-ops-deploy-sub008/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	// Read migration files and execute them
	// This is a simplified version - you might want to use a proper migration tool
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS resources (
			id SERIAL PRIMARY KEY,
			number VARCHAR(16) UNIQUE NOT NULL,
			kind VARCHAR(16) NOT NULL,
			tier VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'CLEAN',
			occupant_id INTEGER REFERENCES customers(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT resources_occupancy_check CHECK (
				(occupant_id IS NULL AND status <> 'OCCUPIED')
				OR (occupant_id IS NOT NULL AND status = 'OCCUPIED')
			)
		)`,

		`CREATE TABLE IF NOT EXISTS waitlist_entries (
			id SERIAL PRIMARY KEY,
			visit_id BIGINT NOT NULL,
			desired_tier VARCHAR(16) NOT NULL,
			backup_tier VARCHAR(16),
			status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			resource_id INTEGER REFERENCES resources(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			offered_at TIMESTAMP,
			completed_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS lane_sessions (
			id SERIAL PRIMARY KEY,
			lane VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'ACTIVE',
			staff_id BIGINT,
			customer_id INTEGER REFERENCES customers(id),
			desired_tier VARCHAR(16),
			backup_tier VARCHAR(16),
			resource_id INTEGER REFERENCES resources(id),
			price_quote_cents BIGINT,
			payment_ref VARCHAR(64),
			confirm_locked BOOLEAN NOT NULL DEFAULT FALSE,
			kiosk_acked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// The partial unique index is the database-level backstop for offer
		// exclusivity: no two non-terminal entries may bind one resource.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_reserved_resource
			ON waitlist_entries(resource_id)
			WHERE status IN ('ACTIVE', 'OFFERED') AND resource_id IS NOT NULL`,

		// Backstop for the one-session-per-lane invariant: the row lock in
		// the create path cannot see rows committed after its statement
		// snapshot, so concurrent starts race to this index instead.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_lane_sessions_open_lane
			ON lane_sessions(lane)
			WHERE status NOT IN ('COMPLETED', 'CANCELLED')`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_waitlist_status ON waitlist_entries(status)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_tier_status ON waitlist_entries(desired_tier, status)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_tier_status ON resources(tier, status)`,
		`CREATE INDEX IF NOT EXISTS idx_lane_sessions_lane ON lane_sessions(lane, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_lane_sessions_status ON lane_sessions(status)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
