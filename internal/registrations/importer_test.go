package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"taptrack/internal/events"
)

type fakeRepo struct {
	numbers   map[string]string // student number -> internal id
	pairs     map[string]bool   // studentID|eventID
	bulkCalls int
	bound     []RegisteredStudent
}

func newFakeRepo(numbers map[string]string) *fakeRepo {
	return &fakeRepo{numbers: numbers, pairs: make(map[string]bool)}
}

func (f *fakeRepo) ResolveNumbers(_ context.Context, numbers []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, n := range numbers {
		if id, ok := f.numbers[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (f *fakeRepo) BulkInsert(_ context.Context, eventID string, studentIDs []string, _ time.Time) (int64, error) {
	f.bulkCalls++
	var inserted int64
	for _, id := range studentIDs {
		key := id + "|" + eventID
		if !f.pairs[key] {
			f.pairs[key] = true
			inserted++
		}
	}
	return inserted, nil
}

func (f *fakeRepo) ListBoundForEvent(_ context.Context, _ string) ([]RegisteredStudent, error) {
	return f.bound, nil
}

type fakeEventDir struct {
	evt *events.Event
}

func (f *fakeEventDir) Get(_ context.Context, id string) (*events.Event, error) {
	if f.evt == nil || f.evt.ID != id {
		return nil, events.ErrNotFound
	}
	evt := *f.evt
	return &evt, nil
}

func testEvent(status events.Status) *events.Event {
	return &events.Event{ID: "ev1", Name: "General Assembly", Status: status}
}

func csvOf(numbers ...string) *strings.Reader {
	var b strings.Builder
	b.WriteString("student_id,name\n")
	for _, n := range numbers {
		b.WriteString(n + ",ignored\n")
	}
	return strings.NewReader(b.String())
}

func TestImportStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr error
	}{
		{name: "no student_id column", csv: "name,email\nAda,a@x.org\n", wantErr: ErrMissingColumn},
		{name: "header only", csv: "student_id\n", wantErr: ErrEmptyImport},
		{name: "empty input", csv: "", wantErr: ErrEmptyImport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(nil)
			im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})
			_, err := im.Import(context.Background(), "ev1", strings.NewReader(tt.csv))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if repo.bulkCalls != 0 {
				t.Errorf("no write expected on validation failure")
			}
		})
	}
}

func TestImportRowLimit(t *testing.T) {
	numbers := make([]string, MaxImportRows+1)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("23-01-%03d", i)
	}
	repo := newFakeRepo(nil)
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})

	_, err := im.Import(context.Background(), "ev1", csvOf(numbers...))
	if !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("error = %v, want ErrTooManyRows", err)
	}
}

func TestImportEmptyStudentIDShortCircuits(t *testing.T) {
	repo := newFakeRepo(map[string]string{"23-01-001": "s1"})
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})

	_, err := im.Import(context.Background(), "ev1", csvOf("23-01-001", "", "23-01-001"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Total != 1 || verr.RowErrors[0].Row != 3 {
		t.Errorf("errors = %+v, want one error at row 3", verr)
	}
	if repo.bulkCalls != 0 {
		t.Errorf("structural failure must prevent any write")
	}
}

func TestImportUnknownStudentRejectsWholeFile(t *testing.T) {
	// 500 rows where only row 37 is unknown: the entire import is rejected
	// with that single row's error and nothing is written.
	known := make(map[string]string)
	numbers := make([]string, MaxImportRows)
	for i := range numbers {
		n := fmt.Sprintf("23-01-%03d", i)
		numbers[i] = n
		known[n] = fmt.Sprintf("id-%03d", i)
	}
	delete(known, numbers[36])

	repo := newFakeRepo(known)
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})

	_, err := im.Import(context.Background(), "ev1", csvOf(numbers...))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Total != 1 {
		t.Fatalf("total errors = %d, want 1", verr.Total)
	}
	if verr.RowErrors[0].Row != 38 { // header + 1-based data row 37
		t.Errorf("error row = %d, want 38", verr.RowErrors[0].Row)
	}
	if repo.bulkCalls != 0 {
		t.Errorf("referential failure must prevent any write")
	}
}

func TestImportErrorReportIsCapped(t *testing.T) {
	repo := newFakeRepo(nil)
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})

	numbers := make([]string, 25)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("99-99-%03d", i)
	}
	_, err := im.Import(context.Background(), "ev1", csvOf(numbers...))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.RowErrors) != 10 {
		t.Errorf("reported errors = %d, want 10", len(verr.RowErrors))
	}
	if verr.Total != 25 {
		t.Errorf("total = %d, want 25", verr.Total)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	repo := newFakeRepo(map[string]string{
		"23-01-001": "s1",
		"23-01-002": "s2",
		"23-01-003": "s3",
	})
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})
	ctx := context.Background()

	first, err := im.Import(ctx, "ev1", csvOf("23-01-001", "23-01-002", "23-01-003"))
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Inserted != 3 || first.Skipped != 0 {
		t.Errorf("first = %d/%d, want 3 inserted 0 skipped", first.Inserted, first.Skipped)
	}
	if first.EventName != "General Assembly" {
		t.Errorf("event name = %q", first.EventName)
	}

	second, err := im.Import(ctx, "ev1", csvOf("23-01-001", "23-01-002", "23-01-003"))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Inserted != 0 || second.Skipped != 3 {
		t.Errorf("second = %d/%d, want 0 inserted 3 skipped", second.Inserted, second.Skipped)
	}
}

func TestImportDeduplicatesWithinFile(t *testing.T) {
	repo := newFakeRepo(map[string]string{"23-01-001": "s1"})
	im := NewImporter(repo, &fakeEventDir{evt: testEvent(events.StatusUpcoming)})

	report, err := im.Import(context.Background(), "ev1", csvOf("23-01-001", "23-01-001"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Inserted != 1 || report.Skipped != 1 {
		t.Errorf("report = %d/%d, want 1 inserted 1 skipped", report.Inserted, report.Skipped)
	}
}

func TestImportUnknownEvent(t *testing.T) {
	im := NewImporter(newFakeRepo(nil), &fakeEventDir{})
	_, err := im.Import(context.Background(), "missing", csvOf("23-01-001"))
	if !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("error = %v, want events.ErrNotFound", err)
	}
}

func TestExportForEvent(t *testing.T) {
	bound := []RegisteredStudent{
		{StudentID: "s1", StudentNumber: "23-01-001", Name: "Ada", CardUID: "AA:BB"},
	}

	tests := []struct {
		name    string
		status  events.Status
		wantErr error
	}{
		{name: "upcoming is exportable", status: events.StatusUpcoming},
		{name: "active is exportable", status: events.StatusActive},
		{name: "completed is refused", status: events.StatusCompleted, wantErr: ErrEventCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(nil)
			repo.bound = bound
			im := NewImporter(repo, &fakeEventDir{evt: testEvent(tt.status)})

			export, err := im.ExportForEvent(context.Background(), "ev1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if export.TotalRegistrations != 1 || export.Registrations[0].CardUID != "AA:BB" {
				t.Errorf("export = %+v", export)
			}
		})
	}
}
