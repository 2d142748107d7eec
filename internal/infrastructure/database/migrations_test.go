package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = fsys
	MigrationsDir = dir
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/20261001_090000_create_events.up.sql": {Data: []byte(
			"CREATE TABLE test_events (id TEXT PRIMARY KEY, kind TEXT NOT NULL);")},
		"sql/20261001_090000_create_events.down.sql": {Data: []byte(
			"DROP TABLE test_events;")},
		"sql/20261002_090000_add_index.up.sql": {Data: []byte(
			"CREATE INDEX idx_test_events_kind ON test_events(kind);")},
		"sql/README.md": {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count > 0
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_events") || !tableExists(t, db, "idx_test_events_kind") {
		t.Fatal("migrations not applied")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	fsys := testMigrations()
	fsys["sql/20261003_090000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE ;")}
	fsys["sql/20261004_090000_later.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE later (id TEXT);")}
	useMigrations(t, fsys, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 2 {
		t.Errorf("applied = %d, pending = %d, want 2 and 2", len(applied), len(pending))
	}
	if tableExists(t, db, "later") {
		t.Error("migration after the broken one was applied")
	}
}

func TestMigrateDown(t *testing.T) {
	fsys := fstest.MapFS{
		"20261001_090000_create_events.up.sql":   {Data: []byte("CREATE TABLE test_events (id TEXT PRIMARY KEY);")},
		"20261001_090000_create_events.down.sql": {Data: []byte("DROP TABLE test_events;")},
	}
	useMigrations(t, fsys, ".")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_events") {
		t.Error("table test_events should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// The latest migration (add_index) has no down file.
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() expected error for missing down SQL")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
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
		{"valid up", "20261019_120000_audit_logs.up.sql", "20261019_120000", true, true},
		{"valid down", "20261019_120000_audit_logs.down.sql", "20261019_120000", false, true},
		{"not sql", "readme.txt", "", false, false},
		{"missing direction", "20261019_120000_audit_logs.sql", "", false, false},
		{"invalid format", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261019_120000_audit_logs.up.sql", "audit_logs"},
		{"20261019_120000_audit_logs.down.sql", "audit_logs"},
		{"20261020_080000_add_duration_to_audit.up.sql", "add_duration_to_audit"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
