package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

// useMigrations swaps in fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	if fsys == nil {
		MigrationsFS = nil
	} else {
		MigrationsFS = fsys
	}
	MigrationsDir = "."
}

func journalMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20261017_120000_camera_events.up.sql": {Data: []byte(`
			CREATE TABLE camera_events (
				id INTEGER PRIMARY KEY,
				camera TEXT NOT NULL
			);
			CREATE INDEX idx_camera_events_camera ON camera_events(camera);
		`)},
		"20261017_120000_camera_events.down.sql": {Data: []byte(`DROP TABLE camera_events;`)},
		"20261018_090000_camera_notes.up.sql":    {Data: []byte(`ALTER TABLE camera_events ADD COLUMN note TEXT;`)},
		"README.md":                              {Data: []byte("not a migration")},
	}
}

func TestMigrate(t *testing.T) {
	useMigrations(t, journalMigrations())

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO camera_events (camera, note) VALUES (?, ?)", "front", "ok"); err != nil {
		t.Fatalf("both migrations should be applied: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}
	if applied[0].Version != "20261017_120000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("applied[0] = %+v", applied[0])
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261017_120000_camera_events.up.sql":   {Data: []byte(`CREATE TABLE camera_events (id INTEGER PRIMARY KEY);`)},
		"20261017_120000_camera_events.down.sql": {Data: []byte(`DROP TABLE camera_events;`)},
	})

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='camera_events'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 0 {
		t.Error("table camera_events should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	useMigrations(t, journalMigrations())

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() expected error for migration without down SQL")
	}
}

func TestMigrate_FailureRollsBackThatMigration(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261017_120000_good.up.sql": {Data: []byte(`CREATE TABLE good (id INTEGER);`)},
		"20261017_130000_bad.up.sql":  {Data: []byte(`CREATE TABLE half (id INTEGER); NOT SQL;`)},
	})

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1 and 1", len(applied), len(pending))
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestGetMigrationStatus_Pending(t *testing.T) {
	useMigrations(t, journalMigrations())

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, pending, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].Name != "camera_events" || pending[1].Name != "camera_notes" {
		t.Errorf("pending not in version order: %q, %q", pending[0].Name, pending[1].Name)
	}
}

func TestLoadMigrations_OrphanDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261017_120000_orphan.down.sql": {Data: []byte(`DROP TABLE x;`)},
	})

	if _, err := loadMigrations(); err == nil {
		t.Error("loadMigrations() expected error for down file without up file")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20261017_120000_frame_faults.up.sql",
			wantVersion: "20261017_120000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20261017_120000_frame_faults.down.sql",
			wantVersion: "20261017_120000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "readme.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20261017_120000_frame_faults.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
		{
			name:     "short timestamp",
			filename: "2026_12_frame_faults.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261017_120000_frame_faults.up.sql", "frame_faults"},
		{"20261017_120000_initial_schema.down.sql", "initial_schema"},
		{"20261017_120000_add_stack_to_frame_faults.up.sql", "add_stack_to_frame_faults"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := extractMigrationName(tt.filename)
			if got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
