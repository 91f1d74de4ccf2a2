// Package students owns the identity records that cards bind to and
// registrations reference.
package students

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Student is an identity record created by administrative import. CardUID is
// set exactly once through the activation flow and never reassigned.
type Student struct {
	ID            string    `json:"id"`
	StudentNumber string    `json:"studentNumber"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	CardUID       *string   `json:"cardUid,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

var (
	// ErrNotFound signals an unknown student.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicateNumber signals a student number already in use.
	ErrDuplicateNumber = errors.New("student number already exists")
	// ErrNumberRequired signals a missing student number.
	ErrNumberRequired = errors.New("student number required")
	// ErrNameRequired signals a missing name.
	ErrNameRequired = errors.New("student name required")
	// ErrCardTaken signals a card UID already bound to some student, raised by
	// the unique constraint on card_uid at bind time.
	ErrCardTaken = errors.New("card already bound")
)

// Repository persists students.
type Repository interface {
	Insert(ctx context.Context, st Student) (Student, error)
	GetByNumber(ctx context.Context, number string) (*Student, error)
	List(ctx context.Context) ([]Student, error)
}

// Service handles the administrative student surface.
type Service struct {
	repo Repository
}

// NewService creates a student service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new student with a unique student number.
func (s *Service) Create(ctx context.Context, st Student) (Student, error) {
	st.StudentNumber = strings.TrimSpace(st.StudentNumber)
	st.Name = strings.TrimSpace(st.Name)
	if st.StudentNumber == "" {
		return Student{}, ErrNumberRequired
	}
	if st.Name == "" {
		return Student{}, ErrNameRequired
	}
	return s.repo.Insert(ctx, st)
}

// List returns all students ordered by student number.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.repo.List(ctx)
}

// GetByNumber returns one student by external student number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Student, error) {
	return s.repo.GetByNumber(ctx, number)
}
