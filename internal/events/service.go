package events

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of an event.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Event is an organization event that students check in to.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      Status    `json:"status"`
	Deleted     bool      `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var (
	// ErrNotFound signals an unknown or deleted event id.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidTimeRange signals startTime >= endTime.
	ErrInvalidTimeRange = errors.New("event start time must be before end time")
	// ErrInvalidStatus signals a status outside the lifecycle set.
	ErrInvalidStatus = errors.New("invalid event status")
	// ErrNameRequired signals a missing event name.
	ErrNameRequired = errors.New("event name required")
	// ErrMultipleActive signals a store-level invariant violation: more than
	// one non-deleted event reads as active. Never resolved by picking one.
	ErrMultipleActive = errors.New("multiple active events found")
)

// Repository persists events.
type Repository interface {
	Insert(ctx context.Context, evt Event) (Event, error)
	Update(ctx context.Context, evt Event) (Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	Activate(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) error
	SoftDelete(ctx context.Context, id string) error
	Active(ctx context.Context) ([]Event, error)
}

// Service owns the event lifecycle and the single-active-event invariant.
type Service struct {
	repo Repository
}

// NewService creates an event service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(evt Event) error {
	if strings.TrimSpace(evt.Name) == "" {
		return ErrNameRequired
	}
	if evt.StartTime.IsZero() || evt.EndTime.IsZero() || !evt.StartTime.Before(evt.EndTime) {
		return ErrInvalidTimeRange
	}
	switch evt.Status {
	case StatusUpcoming, StatusActive, StatusCompleted:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// Create stores a new event. A request for active status activates the event
// after insert, demoting any other active event.
func (s *Service) Create(ctx context.Context, evt Event) (Event, error) {
	if evt.Status == "" {
		evt.Status = StatusUpcoming
	}
	if err := validate(evt); err != nil {
		return Event{}, err
	}
	wantActive := evt.Status == StatusActive
	if wantActive {
		evt.Status = StatusUpcoming
	}
	created, err := s.repo.Insert(ctx, evt)
	if err != nil {
		return Event{}, err
	}
	if wantActive {
		if err := s.Activate(ctx, created.ID); err != nil {
			return Event{}, err
		}
		created.Status = StatusActive
	}
	return created, nil
}

// Update replaces an event's fields. Requesting active status demotes any
// other active event in the same transaction.
func (s *Service) Update(ctx context.Context, evt Event) (Event, error) {
	if err := validate(evt); err != nil {
		return Event{}, err
	}
	return s.repo.Update(ctx, evt)
}

// Get returns one non-deleted event.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.Get(ctx, id)
}

// List returns all non-deleted events, newest first.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

// Activate makes the target the single active event, completing any other
// active event first.
func (s *Service) Activate(ctx context.Context, id string) error {
	return s.repo.Activate(ctx, id)
}

// End completes the target unconditionally.
func (s *Service) End(ctx context.Context, id string) error {
	return s.repo.SetStatus(ctx, id, StatusCompleted)
}

// Delete soft-deletes the event; registrations and attendance rows that
// reference it are retained for reporting.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

// ActiveEvent resolves the single active event. Zero active events is valid
// and returns (nil, nil); more than one surfaces ErrMultipleActive.
func (s *Service) ActiveEvent(ctx context.Context) (*Event, error) {
	active, err := s.repo.Active(ctx)
	if err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		evt := active[0]
		return &evt, nil
	default:
		return nil, ErrMultipleActive
	}
}
