// Package cards tracks the card lifecycle: a UID is unseen until a field
// device reports it, pending until an admin binds it to a student, and bound
// from then on. Pending entries expire after a TTL enforced at read time.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taptrack/internal/metrics"
	"taptrack/internal/notify"
	"taptrack/internal/students"
)

// MaxBatchSize bounds a single batch detection report.
const MaxBatchSize = 100

// PendingCard is a detected-but-unbound card awaiting admin activation.
type PendingCard struct {
	UID        string    `json:"uid"`
	DeviceID   string    `json:"deviceId"`
	DetectedAt time.Time `json:"detectedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Detection statuses returned per reported card.
const (
	DetectionPending   = "pending"
	DetectionDuplicate = "duplicate"
	DetectionFailed    = "failed"
)

var (
	// ErrStudentNotFound signals an unknown student number during activation.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentHasCard signals the student is already bound to a card; a
	// bound card is never silently overwritten.
	ErrStudentHasCard = errors.New("student already has an activated card")
	// ErrBatchTooLarge signals a batch beyond MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d cards", MaxBatchSize)
)

// ConflictError reports a card already bound to a different student, naming
// the current owner so the admin can resolve the clash.
type ConflictError struct {
	OwnerNumber string
	OwnerName   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("card already activated for student %s (%s)", e.OwnerNumber, e.OwnerName)
}

// PendingRepository persists pending cards.
type PendingRepository interface {
	Upsert(ctx context.Context, card PendingCard) (created bool, err error)
	ListActive(ctx context.Context, now time.Time) ([]PendingCard, error)
	Delete(ctx context.Context, uid string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StudentDirectory is the slice of the student store the registry needs.
type StudentDirectory interface {
	GetByCardUID(ctx context.Context, uid string) (*students.Student, error)
	GetByNumber(ctx context.Context, number string) (*students.Student, error)
	BindCard(ctx context.Context, studentID, uid string) (bool, error)
}

// Registry coordinates card detection, activation, and status resolution.
type Registry struct {
	pending  PendingRepository
	students StudentDirectory
	notifier notify.Notifier
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a card registry. TTL defaults to five minutes.
func NewRegistry(pending PendingRepository, dir StudentDirectory, notifier notify.Notifier, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		pending:  pending,
		students: dir,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// DetectionResult is the per-card outcome of a detection report.
type DetectionResult struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReportDetection records a tap of an unrecognized card. A card already bound
// to a student reports as duplicate and leaves no pending entry; otherwise the
// pending entry is upserted with a fresh expiry.
func (r *Registry) ReportDetection(ctx context.Context, rawUID, deviceID string) (DetectionResult, error) {
	uid, err := NormalizeUID(rawUID)
	if err != nil {
		metrics.CardDetections.WithLabelValues("invalid").Inc()
		return DetectionResult{UID: rawUID, Status: DetectionFailed}, err
	}

	owner, err := r.students.GetByCardUID(ctx, uid)
	if err != nil {
		return DetectionResult{UID: uid, Status: DetectionFailed}, err
	}
	if owner != nil {
		metrics.CardDetections.WithLabelValues("duplicate").Inc()
		return DetectionResult{UID: uid, Status: DetectionDuplicate}, nil
	}

	now := r.now().UTC()
	created, err := r.pending.Upsert(ctx, PendingCard{
		UID:        uid,
		DeviceID:   deviceID,
		DetectedAt: now,
		ExpiresAt:  now.Add(r.ttl),
	})
	if err != nil {
		return DetectionResult{UID: uid, Status: DetectionFailed}, err
	}
	metrics.CardDetections.WithLabelValues("pending").Inc()

	kind := "refreshed"
	if created {
		kind = "created"
	}
	r.publish(ctx, notify.Change{Kind: kind, UID: uid, DeviceID: deviceID})

	return DetectionResult{UID: uid, Status: DetectionPending}, nil
}

// BatchResult aggregates a batch detection report so the caller can reconcile
// partial success.
type BatchResult struct {
	Success    int               `json:"success"`
	Duplicates int               `json:"duplicates"`
	Failed     int               `json:"failed"`
	Results    []DetectionResult `json:"results"`
}

// ReportDetectionBatch applies per-card detection logic; one bad UID never
// aborts its siblings.
func (r *Registry) ReportDetectionBatch(ctx context.Context, uids []string, deviceID string) (BatchResult, error) {
	if len(uids) > MaxBatchSize {
		return BatchResult{}, ErrBatchTooLarge
	}
	var out BatchResult
	out.Results = make([]DetectionResult, 0, len(uids))
	for _, raw := range uids {
		res, err := r.ReportDetection(ctx, raw, deviceID)
		if err != nil {
			res.Status = DetectionFailed
			res.Error = err.Error()
		}
		switch res.Status {
		case DetectionPending:
			out.Success++
		case DetectionDuplicate:
			out.Duplicates++
		default:
			out.Failed++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// ListPending returns all non-expired pending cards, most recent first.
func (r *Registry) ListPending(ctx context.Context) ([]PendingCard, error) {
	return r.pending.ListActive(ctx, r.now().UTC())
}

// Activate binds a card to the student with the given external number. The
// bind is the durable step; removing the pending entry afterwards is
// best-effort cleanup and its failure is logged, not surfaced.
func (r *Registry) Activate(ctx context.Context, studentNumber, rawUID string) (*students.Student, error) {
	uid, err := NormalizeUID(rawUID)
	if err != nil {
		return nil, err
	}

	st, err := r.students.GetByNumber(ctx, studentNumber)
	if err != nil {
		return nil, err
	}
	if st == nil {
		metrics.CardActivations.WithLabelValues("not_found").Inc()
		return nil, ErrStudentNotFound
	}
	if st.CardUID != nil {
		metrics.CardActivations.WithLabelValues("conflict").Inc()
		return nil, ErrStudentHasCard
	}

	if owner, err := r.students.GetByCardUID(ctx, uid); err != nil {
		return nil, err
	} else if owner != nil {
		metrics.CardActivations.WithLabelValues("conflict").Inc()
		return nil, &ConflictError{OwnerNumber: owner.StudentNumber, OwnerName: owner.Name}
	}

	bound, err := r.students.BindCard(ctx, st.ID, uid)
	if err != nil {
		if errors.Is(err, students.ErrCardTaken) {
			// Lost the race to another activation of the same UID.
			metrics.CardActivations.WithLabelValues("conflict").Inc()
			if owner, lookupErr := r.students.GetByCardUID(ctx, uid); lookupErr == nil && owner != nil {
				return nil, &ConflictError{OwnerNumber: owner.StudentNumber, OwnerName: owner.Name}
			}
			return nil, &ConflictError{}
		}
		return nil, err
	}
	if !bound {
		metrics.CardActivations.WithLabelValues("conflict").Inc()
		return nil, ErrStudentHasCard
	}
	metrics.CardActivations.WithLabelValues("ok").Inc()

	if _, err := r.pending.Delete(ctx, uid); err != nil {
		log.Printf("pending card cleanup failed for %s: %v", uid, err)
	} else {
		r.publish(ctx, notify.Change{Kind: "removed", UID: uid})
	}

	st.CardUID = &uid
	return st, nil
}

// CardStatus reports whether a tapped card has since been activated. Devices
// poll this to learn about activation without exposing a write path.
type CardStatus struct {
	Activated     bool   `json:"activated"`
	StudentName   string `json:"studentName,omitempty"`
	StudentNumber string `json:"studentId,omitempty"`
}

// ResolveStatus returns the binding state of a card UID.
func (r *Registry) ResolveStatus(ctx context.Context, rawUID string) (CardStatus, error) {
	uid, err := NormalizeUID(rawUID)
	if err != nil {
		return CardStatus{}, err
	}
	owner, err := r.students.GetByCardUID(ctx, uid)
	if err != nil {
		return CardStatus{}, err
	}
	if owner == nil {
		return CardStatus{}, nil
	}
	return CardStatus{
		Activated:     true,
		StudentName:   owner.Name,
		StudentNumber: owner.StudentNumber,
	}, nil
}

// SweepExpired removes expired pending entries. Expiry is already enforced at
// read time; this is the optional administrative cleanup, safe to call any
// number of times.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	return r.pending.DeleteExpired(ctx, r.now().UTC())
}

func (r *Registry) publish(ctx context.Context, change notify.Change) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishCardChange(ctx, change); err != nil {
		log.Printf("pending card notification failed: %v", err)
	}
}
