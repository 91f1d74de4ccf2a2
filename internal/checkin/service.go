// Package checkin implements the check-in state machine: a card tap during an
// active event becomes at most one attendance record per (student, event).
package checkin

import (
	"context"
	"errors"
	"time"

	"taptrack/internal/cards"
	"taptrack/internal/events"
	"taptrack/internal/metrics"
	"taptrack/internal/students"
)

var (
	// ErrNoActiveEvent signals that no event is currently accepting check-ins.
	ErrNoActiveEvent = errors.New("no active event")
	// ErrCardNotRegistered signals a card UID bound to no student.
	ErrCardNotRegistered = errors.New("card not registered")
	// ErrNotRegistered signals a bound card whose student is not registered
	// for the active event.
	ErrNotRegistered = errors.New("student not registered for this event")
	// ErrAlreadyCheckedIn signals a repeated tap; the first record stands.
	ErrAlreadyCheckedIn = errors.New("already checked in")
)

// Result is what a field device needs to render immediate feedback.
type Result struct {
	StudentName     string    `json:"studentName"`
	StudentNumber   string    `json:"studentId"`
	EventName       string    `json:"eventName"`
	CheckedInAt     time.Time `json:"checkedInAt"`
	AttendedCount   int       `json:"attendedCount"`
	RegisteredCount int       `json:"registeredCount"`
}

// EventResolver supplies the current active event.
type EventResolver interface {
	ActiveEvent(ctx context.Context) (*events.Event, error)
}

// StudentResolver maps bound card UIDs to students.
type StudentResolver interface {
	GetByCardUID(ctx context.Context, uid string) (*students.Student, error)
}

// RegistrationChecker verifies eligibility and supplies the registered count.
type RegistrationChecker interface {
	Exists(ctx context.Context, studentID, eventID string) (bool, error)
	CountForEvent(ctx context.Context, eventID string) (int, error)
}

// AttendanceRepository persists attendance facts. Insert must surface a
// duplicate (student, event) pair as ErrAlreadyCheckedIn; the store-level
// unique constraint, not the pre-check, is the source of truth.
type AttendanceRepository interface {
	Exists(ctx context.Context, studentID, eventID string) (bool, error)
	Insert(ctx context.Context, studentID, eventID string, at time.Time) error
	CountForEvent(ctx context.Context, eventID string) (int, error)
}

// Recorder runs the check-in sequence.
type Recorder struct {
	events        EventResolver
	students      StudentResolver
	registrations RegistrationChecker
	attendance    AttendanceRepository
	now           func() time.Time
}

// NewRecorder creates a check-in recorder.
func NewRecorder(ev EventResolver, st StudentResolver, reg RegistrationChecker, att AttendanceRepository) *Recorder {
	return &Recorder{
		events:        ev,
		students:      st,
		registrations: reg,
		attendance:    att,
		now:           time.Now,
	}
}

// CheckIn records attendance for the tapped card against the active event.
// Each step short-circuits with its own failure; a concurrent duplicate tap
// surfaces exactly like a repeated one.
func (r *Recorder) CheckIn(ctx context.Context, rawUID string) (Result, error) {
	uid, err := cards.NormalizeUID(rawUID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	evt, err := r.events.ActiveEvent(ctx)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if evt == nil {
		metrics.CheckIns.WithLabelValues("no_active_event").Inc()
		return Result{}, ErrNoActiveEvent
	}

	student, err := r.students.GetByCardUID(ctx, uid)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if student == nil {
		metrics.CheckIns.WithLabelValues("unknown_card").Inc()
		return Result{}, ErrCardNotRegistered
	}

	registered, err := r.registrations.Exists(ctx, student.ID, evt.ID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if !registered {
		metrics.CheckIns.WithLabelValues("not_registered").Inc()
		return Result{}, ErrNotRegistered
	}

	// Friendlier duplicate message; the insert below is the actual guard.
	already, err := r.attendance.Exists(ctx, student.ID, evt.ID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if already {
		metrics.CheckIns.WithLabelValues("duplicate").Inc()
		return Result{}, ErrAlreadyCheckedIn
	}

	at := r.now().UTC()
	if err := r.attendance.Insert(ctx, student.ID, evt.ID, at); err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			metrics.CheckIns.WithLabelValues("duplicate").Inc()
		} else {
			metrics.CheckIns.WithLabelValues("error").Inc()
		}
		return Result{}, err
	}
	metrics.CheckIns.WithLabelValues("ok").Inc()

	attended, err := r.attendance.CountForEvent(ctx, evt.ID)
	if err != nil {
		return Result{}, err
	}
	total, err := r.registrations.CountForEvent(ctx, evt.ID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		StudentName:     student.Name,
		StudentNumber:   student.StudentNumber,
		EventName:       evt.Name,
		CheckedInAt:     at,
		AttendedCount:   attended,
		RegisteredCount: total,
	}, nil
}
