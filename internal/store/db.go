package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and applies the schema.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

// migrate applies the idempotent schema. The unique constraints here are the
// correctness backstop for check-in and activation, not the application checks.
func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id             UUID PRIMARY KEY,
		student_number TEXT UNIQUE NOT NULL,
		name           TEXT NOT NULL,
		email          TEXT,
		card_uid       TEXT UNIQUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS events (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time  TIMESTAMPTZ NOT NULL,
		end_time    TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL DEFAULT 'upcoming',
		deleted     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS events_single_active
		ON events (status) WHERE status = 'active' AND NOT deleted;

	CREATE TABLE IF NOT EXISTS registrations (
		student_id    UUID NOT NULL REFERENCES students(id),
		event_id      UUID NOT NULL REFERENCES events(id),
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (student_id, event_id)
	);

	CREATE TABLE IF NOT EXISTS attendance (
		student_id    UUID NOT NULL REFERENCES students(id),
		event_id      UUID NOT NULL REFERENCES events(id),
		checked_in_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (student_id, event_id)
	);

	CREATE TABLE IF NOT EXISTS pending_cards (
		uid         TEXT PRIMARY KEY,
		device_id   TEXT NOT NULL DEFAULT '',
		detected_at TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_cards_expires ON pending_cards(expires_at);
	CREATE INDEX IF NOT EXISTS idx_attendance_event      ON attendance(event_id);
	CREATE INDEX IF NOT EXISTS idx_registrations_event   ON registrations(event_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
