package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRepo struct {
	events map[string]*Event
	nextID int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[string]*Event)}
}

func (f *fakeRepo) Insert(_ context.Context, evt Event) (Event, error) {
	f.nextID++
	evt.ID = time.Now().Format("20060102") + "-" + string(rune('a'+f.nextID))
	stored := evt
	f.events[evt.ID] = &stored
	return evt, nil
}

func (f *fakeRepo) Update(_ context.Context, evt Event) (Event, error) {
	stored, ok := f.events[evt.ID]
	if !ok || stored.Deleted {
		return Event{}, ErrNotFound
	}
	if evt.Status == StatusActive {
		f.demoteOthers(evt.ID)
	}
	*stored = evt
	return evt, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*Event, error) {
	stored, ok := f.events[id]
	if !ok || stored.Deleted {
		return nil, ErrNotFound
	}
	evt := *stored
	return &evt, nil
}

func (f *fakeRepo) List(_ context.Context) ([]Event, error) {
	var out []Event
	for _, evt := range f.events {
		if !evt.Deleted {
			out = append(out, *evt)
		}
	}
	return out, nil
}

func (f *fakeRepo) demoteOthers(exceptID string) {
	for id, evt := range f.events {
		if id != exceptID && evt.Status == StatusActive && !evt.Deleted {
			evt.Status = StatusCompleted
		}
	}
}

func (f *fakeRepo) Activate(_ context.Context, id string) error {
	stored, ok := f.events[id]
	if !ok || stored.Deleted {
		return ErrNotFound
	}
	f.demoteOthers(id)
	stored.Status = StatusActive
	return nil
}

func (f *fakeRepo) SetStatus(_ context.Context, id string, status Status) error {
	stored, ok := f.events[id]
	if !ok || stored.Deleted {
		return ErrNotFound
	}
	stored.Status = status
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id string) error {
	stored, ok := f.events[id]
	if !ok || stored.Deleted {
		return ErrNotFound
	}
	stored.Deleted = true
	return nil
}

func (f *fakeRepo) Active(_ context.Context) ([]Event, error) {
	var out []Event
	for _, evt := range f.events {
		if evt.Status == StatusActive && !evt.Deleted {
			out = append(out, *evt)
		}
	}
	return out, nil
}

func validEvent(name string) Event {
	start := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)
	return Event{
		Name:      name,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    StatusUpcoming,
	}
}

func TestCreateValidation(t *testing.T) {
	start := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		evt     Event
		wantErr error
	}{
		{
			name:    "missing name",
			evt:     Event{StartTime: start, EndTime: start.Add(time.Hour)},
			wantErr: ErrNameRequired,
		},
		{
			name:    "start equals end",
			evt:     Event{Name: "GA", StartTime: start, EndTime: start},
			wantErr: ErrInvalidTimeRange,
		},
		{
			name:    "start after end",
			evt:     Event{Name: "GA", StartTime: start.Add(time.Hour), EndTime: start},
			wantErr: ErrInvalidTimeRange,
		},
		{
			name:    "unknown status",
			evt:     Event{Name: "GA", StartTime: start, EndTime: start.Add(time.Hour), Status: "archived"},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "valid upcoming",
			evt:  Event{Name: "GA", StartTime: start, EndTime: start.Add(time.Hour), Status: StatusUpcoming},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeRepo())
			_, err := svc.Create(context.Background(), tt.evt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestActivateDemotesOtherActive(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	e1, err := svc.Create(ctx, validEvent("E1"))
	if err != nil {
		t.Fatalf("create e1: %v", err)
	}
	e2, err := svc.Create(ctx, validEvent("E2"))
	if err != nil {
		t.Fatalf("create e2: %v", err)
	}

	if err := svc.Activate(ctx, e1.ID); err != nil {
		t.Fatalf("activate e1: %v", err)
	}
	if err := svc.Activate(ctx, e2.ID); err != nil {
		t.Fatalf("activate e2: %v", err)
	}

	active, err := svc.ActiveEvent(ctx)
	if err != nil {
		t.Fatalf("ActiveEvent: %v", err)
	}
	if active == nil || active.ID != e2.ID {
		t.Fatalf("active = %+v, want E2", active)
	}
	got1, _ := svc.Get(ctx, e1.ID)
	if got1.Status != StatusCompleted {
		t.Errorf("E1 status = %q, want completed", got1.Status)
	}
}

func TestCreateWithActiveStatusActivates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	e1, _ := svc.Create(ctx, validEvent("E1"))
	if err := svc.Activate(ctx, e1.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	evt := validEvent("E2")
	evt.Status = StatusActive
	e2, err := svc.Create(ctx, evt)
	if err != nil {
		t.Fatalf("create active: %v", err)
	}
	if e2.Status != StatusActive {
		t.Errorf("created status = %q, want active", e2.Status)
	}

	active, err := svc.ActiveEvent(ctx)
	if err != nil {
		t.Fatalf("ActiveEvent: %v", err)
	}
	if active.ID != e2.ID {
		t.Errorf("active = %s, want %s", active.ID, e2.ID)
	}
}

func TestActiveEvent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	active, err := svc.ActiveEvent(ctx)
	if err != nil {
		t.Fatalf("ActiveEvent with none: %v", err)
	}
	if active != nil {
		t.Errorf("no active event expected, got %+v", active)
	}

	// Simulate an externally corrupted store with two actives.
	repo.events["x1"] = &Event{ID: "x1", Name: "X1", Status: StatusActive}
	repo.events["x2"] = &Event{ID: "x2", Name: "X2", Status: StatusActive}
	if _, err := svc.ActiveEvent(ctx); !errors.Is(err, ErrMultipleActive) {
		t.Errorf("error = %v, want ErrMultipleActive", err)
	}
}

func TestEndIsUnconditional(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	evt, _ := svc.Create(ctx, validEvent("E1"))
	if err := svc.End(ctx, evt.ID); err != nil {
		t.Fatalf("end upcoming: %v", err)
	}
	got, _ := svc.Get(ctx, evt.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestDeleteHidesEvent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	evt, _ := svc.Create(ctx, validEvent("E1"))
	if err := svc.Delete(ctx, evt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, evt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted event still readable: %v", err)
	}
	if err := svc.Activate(ctx, evt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted event still activatable: %v", err)
	}
}
