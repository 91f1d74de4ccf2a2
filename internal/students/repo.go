package students

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"taptrack/internal/store"
)

// SQLRepository persists students in Postgres.
type SQLRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const studentColumns = `id, student_number, name, email, card_uid, created_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.StudentNumber, &st.Name, &st.Email, &st.CardUID, &st.CreatedAt)
	return st, err
}

// Insert writes a new student; a duplicate student number maps to
// ErrDuplicateNumber.
func (r *SQLRepository) Insert(ctx context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, student_number, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, st.ID, st.StudentNumber, st.Name, st.Email)
	if err := row.Scan(&st.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return Student{}, ErrDuplicateNumber
		}
		return Student{}, err
	}
	return st, nil
}

// GetByNumber returns a student by external student number, nil when absent.
func (r *SQLRepository) GetByNumber(ctx context.Context, number string) (*Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE student_number = $1`, number)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// GetByCardUID returns the student bound to a card, nil when the card is unbound.
func (r *SQLRepository) GetByCardUID(ctx context.Context, uid string) (*Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE card_uid = $1`, uid)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// BindCard sets card_uid on a student that has none. The IS NULL guard makes
// rebinding impossible at the store level; zero rows affected means the
// student vanished or was bound concurrently.
func (r *SQLRepository) BindCard(ctx context.Context, studentID, uid string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET card_uid = $2 WHERE id = $1 AND card_uid IS NULL
	`, studentID, uid)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return false, ErrCardTaken
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all students ordered by student number.
func (r *SQLRepository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY student_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}
