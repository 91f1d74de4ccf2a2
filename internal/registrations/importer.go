// Package registrations owns the student↔event eligibility records and the
// CSV bulk importer that populates them.
package registrations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"taptrack/internal/events"
	"taptrack/internal/metrics"
)

// MaxImportRows bounds a single import call.
const MaxImportRows = 500

// maxReportedErrors caps the row errors returned to the caller.
const maxReportedErrors = 10

var (
	// ErrTooManyRows signals an import beyond MaxImportRows.
	ErrTooManyRows = fmt.Errorf("import exceeds %d rows", MaxImportRows)
	// ErrMissingColumn signals a CSV without a student_id column.
	ErrMissingColumn = errors.New("csv must have a student_id column")
	// ErrEmptyImport signals a CSV with no data rows.
	ErrEmptyImport = errors.New("csv has no data rows")
	// ErrEventCompleted signals an offline export request for a completed event.
	ErrEventCompleted = errors.New("event already completed")
)

// RowError is a single row-level validation failure.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ValidationError aggregates row errors. Only the first maxReportedErrors are
// carried; Total always reflects the full count. No write happens when one of
// these is returned.
type ValidationError struct {
	RowErrors []RowError `json:"errors"`
	Total     int        `json:"totalErrors"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("import validation failed: %d row error(s)", e.Total)
}

func (e *ValidationError) add(row int, msg string) {
	e.Total++
	if len(e.RowErrors) < maxReportedErrors {
		e.RowErrors = append(e.RowErrors, RowError{Row: row, Message: msg})
	}
}

// Report summarizes a successful import. Skipped rows were already registered
// (or repeated within the CSV), which is what makes re-imports safe.
type Report struct {
	EventID   string `json:"eventId"`
	EventName string `json:"eventName"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
}

// Repository persists registrations.
type Repository interface {
	ResolveNumbers(ctx context.Context, numbers []string) (map[string]string, error)
	BulkInsert(ctx context.Context, eventID string, studentIDs []string, at time.Time) (int64, error)
	ListBoundForEvent(ctx context.Context, eventID string) ([]RegisteredStudent, error)
}

// EventDirectory is the slice of the event store the importer needs.
type EventDirectory interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

// Importer validates and idempotently loads CSV registration data.
type Importer struct {
	repo   Repository
	events EventDirectory
	now    func() time.Time
}

// NewImporter creates an importer.
func NewImporter(repo Repository, events EventDirectory) *Importer {
	return &Importer{repo: repo, events: events, now: time.Now}
}

// Import loads a registration CSV for one event. Validation runs in two full
// passes, structural then referential, and either pass failing anywhere
// rejects the whole import before any write. The final write is a single bulk
// upsert with ignore-on-conflict semantics on the (student, event) pair.
func (im *Importer) Import(ctx context.Context, eventID string, csvData io.Reader) (Report, error) {
	evt, err := im.events.Get(ctx, eventID)
	if err != nil {
		return Report{}, err
	}

	numbers, err := parseRows(csvData)
	if err != nil {
		return Report{}, err
	}

	// Pass 1: structural. Every row must carry a student_id.
	verr := &ValidationError{}
	for i, number := range numbers {
		if number == "" {
			verr.add(i+2, "missing student_id") // +2: 1-based, after header
		}
	}
	if verr.Total > 0 {
		return Report{}, verr
	}

	// Pass 2: referential. Resolve all numbers in one lookup.
	unique := dedupe(numbers)
	resolved, err := im.repo.ResolveNumbers(ctx, unique)
	if err != nil {
		return Report{}, err
	}
	for i, number := range numbers {
		if _, ok := resolved[number]; !ok {
			verr.add(i+2, fmt.Sprintf("unknown student_id %q", number))
		}
	}
	if verr.Total > 0 {
		return Report{}, verr
	}

	ids := make([]string, 0, len(unique))
	for _, number := range unique {
		ids = append(ids, resolved[number])
	}

	inserted, err := im.repo.BulkInsert(ctx, evt.ID, ids, im.now().UTC())
	if err != nil {
		return Report{}, err
	}
	metrics.ImportedRegistrations.Add(float64(inserted))

	return Report{
		EventID:   evt.ID,
		EventName: evt.Name,
		Inserted:  int(inserted),
		Skipped:   len(numbers) - int(inserted),
	}, nil
}

// parseRows extracts the student_id column from the CSV; extra columns are
// ignored.
func parseRows(data io.Reader) ([]string, error) {
	reader := csv.NewReader(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyImport
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "student_id") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrMissingColumn
	}

	var numbers []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		value := ""
		if col < len(record) {
			value = strings.TrimSpace(record[col])
		}
		numbers = append(numbers, value)
		if len(numbers) > MaxImportRows {
			return nil, ErrTooManyRows
		}
	}
	if len(numbers) == 0 {
		return nil, ErrEmptyImport
	}
	return numbers, nil
}

// dedupe preserves first-seen order; a student listed twice in one CSV is one
// registration, the repeat counts as skipped.
func dedupe(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// RegisteredStudent is one row of the offline registration export.
type RegisteredStudent struct {
	StudentID     string `json:"studentId"`
	StudentNumber string `json:"studentNumber"`
	Name          string `json:"name"`
	CardUID       string `json:"cardUid"`
}

// Export is the offline registration list a device stages before an event.
type Export struct {
	EventID            string              `json:"eventId"`
	EventName          string              `json:"eventName"`
	Registrations      []RegisteredStudent `json:"registrations"`
	TotalRegistrations int                 `json:"totalRegistrations"`
}

// ExportForEvent returns the card-bound registrations for a not-yet-completed
// event so a device can validate taps locally. Unbound students are excluded;
// they cannot be validated offline.
func (im *Importer) ExportForEvent(ctx context.Context, eventID string) (Export, error) {
	evt, err := im.events.Get(ctx, eventID)
	if err != nil {
		return Export{}, err
	}
	if evt.Status == events.StatusCompleted {
		return Export{}, ErrEventCompleted
	}
	regs, err := im.repo.ListBoundForEvent(ctx, evt.ID)
	if err != nil {
		return Export{}, err
	}
	return Export{
		EventID:            evt.ID,
		EventName:          evt.Name,
		Registrations:      regs,
		TotalRegistrations: len(regs),
	}, nil
}
