package events

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// SQLRepository persists events in Postgres. A partial unique index on
// (status) WHERE status='active' AND NOT deleted backstops the
// single-active-event invariant under concurrent activation.
type SQLRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const eventColumns = `id, name, description, start_time, end_time, status, deleted, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var evt Event
	err := row.Scan(&evt.ID, &evt.Name, &evt.Description, &evt.StartTime, &evt.EndTime,
		&evt.Status, &evt.Deleted, &evt.CreatedAt, &evt.UpdatedAt)
	return evt, err
}

// Insert writes a new event.
func (r *SQLRepository) Insert(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, name, description, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, evt.ID, evt.Name, evt.Description, evt.StartTime, evt.EndTime, evt.Status)
	if err := row.Scan(&evt.CreatedAt, &evt.UpdatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Update replaces the mutable fields of a non-deleted event. When the new
// status is active, every other active event is completed in the same
// transaction so the partial unique index never rejects the write.
func (r *SQLRepository) Update(ctx context.Context, evt Event) (Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, err
	}
	defer tx.Rollback()

	if evt.Status == StatusActive {
		if _, err := tx.ExecContext(ctx, `
			UPDATE events SET status = 'completed', updated_at = NOW()
			WHERE status = 'active' AND NOT deleted AND id <> $1
		`, evt.ID); err != nil {
			return Event{}, err
		}
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE events
		SET name = $2, description = $3, start_time = $4, end_time = $5, status = $6, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING `+eventColumns+`
	`, evt.ID, evt.Name, evt.Description, evt.StartTime, evt.EndTime, evt.Status)
	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return updated, tx.Commit()
}

// Get returns a non-deleted event by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND NOT deleted`, id)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &evt, nil
}

// List returns non-deleted events, newest start first.
func (r *SQLRepository) List(ctx context.Context) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE NOT deleted ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// Activate completes all other active events and activates the target, as one
// transaction.
func (r *SQLRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET status = 'completed', updated_at = NOW()
		WHERE status = 'active' AND NOT deleted AND id <> $1
	`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE events SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND NOT deleted
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// SetStatus sets the target's status with no precondition on the current one.
func (r *SQLRepository) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET status = $2, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
	`, id, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the event deleted; one-way.
func (r *SQLRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Active returns up to two active non-deleted events so the caller can detect
// an invariant violation instead of silently taking the first row.
func (r *SQLRepository) Active(ctx context.Context) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = 'active' AND NOT deleted LIMIT 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
