package registrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLRepository persists registrations in Postgres. The (student_id, event_id)
// primary key gives bulk import its ignore-on-conflict idempotence.
type SQLRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// ResolveNumbers maps external student numbers to internal ids in a single
// query; unknown numbers are simply absent from the result.
func (r *SQLRepository) ResolveNumbers(ctx context.Context, numbers []string) (map[string]string, error) {
	if len(numbers) == 0 {
		return map[string]string{}, nil
	}
	placeholders := make([]string, len(numbers))
	args := make([]any, len(numbers))
	for i, n := range numbers {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = n
	}
	query := `SELECT student_number, id FROM students WHERE student_number IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string, len(numbers))
	for rows.Next() {
		var number, id string
		if err := rows.Scan(&number, &id); err != nil {
			return nil, err
		}
		out[number] = id
	}
	return out, rows.Err()
}

// BulkInsert upserts (student, event) pairs in one statement; conflicts on the
// pair are ignored, so the affected-row count is the number actually inserted.
func (r *SQLRepository) BulkInsert(ctx context.Context, eventID string, studentIDs []string, at time.Time) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	values := make([]string, len(studentIDs))
	args := make([]any, 0, len(studentIDs)+2)
	args = append(args, eventID, at)
	for i, id := range studentIDs {
		values[i] = fmt.Sprintf("($%d, $1, $2)", i+3)
		args = append(args, id)
	}
	query := `
		INSERT INTO registrations (student_id, event_id, registered_at)
		VALUES ` + strings.Join(values, ",") + `
		ON CONFLICT (student_id, event_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBoundForEvent returns registrations for an event restricted to students
// with a bound card, ordered by student number.
func (r *SQLRepository) ListBoundForEvent(ctx context.Context, eventID string) ([]RegisteredStudent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.student_number, s.name, s.card_uid
		FROM registrations reg
		JOIN students s ON s.id = reg.student_id
		WHERE reg.event_id = $1 AND s.card_uid IS NOT NULL
		ORDER BY s.student_number
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RegisteredStudent
	for rows.Next() {
		var rs RegisteredStudent
		if err := rows.Scan(&rs.StudentID, &rs.StudentNumber, &rs.Name, &rs.CardUID); err != nil {
			return nil, err
		}
		res = append(res, rs)
	}
	return res, rows.Err()
}

// Exists reports whether a student is registered for an event.
func (r *SQLRepository) Exists(ctx context.Context, studentID, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE student_id = $1 AND event_id = $2`,
		studentID, eventID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountForEvent returns the number of registrations for an event.
func (r *SQLRepository) CountForEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}
