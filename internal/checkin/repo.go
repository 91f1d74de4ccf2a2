package checkin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taptrack/internal/store"
)

// SQLAttendanceRepository persists attendance facts in Postgres. The
// (student_id, event_id) primary key is the duplicate-tap backstop.
type SQLAttendanceRepository struct {
	db *sql.DB
}

// NewAttendanceRepository creates a repo.
func NewAttendanceRepository(db *sql.DB) *SQLAttendanceRepository {
	return &SQLAttendanceRepository{db: db}
}

// Exists reports whether the student already checked in to the event.
func (r *SQLAttendanceRepository) Exists(ctx context.Context, studentID, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM attendance WHERE student_id = $1 AND event_id = $2`,
		studentID, eventID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert writes the attendance fact; a unique violation from a concurrent
// duplicate tap maps to ErrAlreadyCheckedIn.
func (r *SQLAttendanceRepository) Insert(ctx context.Context, studentID, eventID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, event_id, checked_in_at)
		VALUES ($1, $2, $3)
	`, studentID, eventID, at)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return err
	}
	return nil
}

// CountForEvent returns how many students have checked in to the event.
func (r *SQLAttendanceRepository) CountForEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}
