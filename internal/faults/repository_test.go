package faults

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-camserver/migrations"
)

// newTestRepository opens a migrated in-memory database.
func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testFault(camera string, at time.Time) *Fault {
	return &Fault{
		CameraID:   1,
		CameraName: camera,
		Worker:     "camera-frame-worker",
		WorkerID:   7,
		Pass:       3,
		Message:    "sensor timeout",
		OccurredAt: at,
	}
}

func TestRecordAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 17, 9, 30, 0, 123456000, time.UTC)

	f := testFault("front-door", at)
	f.Panicked = true
	f.Stack = "goroutine 1 [running]"
	if err := repo.Record(ctx, f); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if f.ID == "" {
		t.Fatal("Record() did not assign an ID")
	}

	got, err := repo.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.CameraName != "front-door" || got.WorkerID != 7 || got.Pass != 3 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.Panicked || got.Stack != f.Stack {
		t.Errorf("panic details lost: panicked=%v stack=%q", got.Panicked, got.Stack)
	}
	if !got.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, at)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "flt-missing")
	if !errors.Is(err, ErrFaultNotFound) {
		t.Errorf("Get() error = %v, want ErrFaultNotFound", err)
	}
}

func TestRecord_Invalid(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		fault *Fault
	}{
		{"nil", nil},
		{"no camera", &Fault{Message: "x"}},
		{"no message", &Fault{CameraName: "cam1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Record(ctx, tt.fault); !errors.Is(err, ErrInvalidFault) {
				t.Errorf("Record() error = %v, want ErrInvalidFault", err)
			}
		})
	}
}

func TestList_NewestFirstWithFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"cam1", "cam2", "cam1", "cam1"} {
		if err := repo.Record(ctx, testFault(name, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
		wantFirst time.Time
	}{
		{"all", Filter{}, 4, 4, base.Add(3 * time.Minute)},
		{"by camera", Filter{CameraName: "cam2"}, 1, 1, base.Add(time.Minute)},
		{"since", Filter{Since: base.Add(2 * time.Minute)}, 2, 2, base.Add(3 * time.Minute)},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, 2, base.Add(2 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Faults) != tt.wantLen {
				t.Fatalf("len(Faults) = %d, want %d", len(result.Faults), tt.wantLen)
			}
			if !result.Faults[0].OccurredAt.Equal(tt.wantFirst) {
				t.Errorf("first fault at %v, want %v", result.Faults[0].OccurredAt, tt.wantFirst)
			}
		})
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepository(t)

	result, err := repo.List(context.Background(), Filter{Limit: 10000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != maxListLimit || result.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", result.Limit, result.Offset, maxListLimit)
	}
	if result.Faults == nil {
		t.Error("Faults is nil, want empty slice")
	}
}

func TestRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if err := repo.Record(ctx, testFault("cam1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	faults, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(faults) != 3 {
		t.Fatalf("Recent(3) returned %d", len(faults))
	}
	if faults[0].OccurredAt.Before(faults[2].OccurredAt) {
		t.Error("Recent() not ordered newest first")
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, age := range []time.Duration{48 * time.Hour, 36 * time.Hour, time.Hour} {
		if err := repo.Record(ctx, testFault("cam1", now.Add(-age))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("remaining = %d, want 1", result.Total)
	}
}
