package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_EmbeddedIsIdempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	n, err := Run(ctx, db, quiet())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n == 0 {
		t.Fatal("Run() applied 0 migrations on an empty database")
	}

	n, err = Run(ctx, db, quiet())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Run() applied %d, want 0", n)
	}

	if _, err := db.Exec(`INSERT INTO readings
		(device_id, model, firmware, battery_percent, temperature_c, realtime_temperature_c, recorded_at)
		VALUES ('47:01:02', 47, '1.01', 90, 21.5, 21.4, '2026-05-01T12:00:00Z')`); err != nil {
		t.Fatalf("readings table unusable: %v", err)
	}
}

func TestRun_OrderAndFiltering(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte(`ALTER TABLE a ADD COLUMN b TEXT;`)},
		"sql/0001_first.sql":  {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"sql/notes.txt":       {Data: []byte(`ignored`)},
		"sql/1_bad.sql":       {Data: []byte(`SYNTAX ERROR`)},
	}

	n, err := run(context.Background(), db, fsys, quiet())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if n != 2 {
		t.Errorf("run() applied %d, want 2", n)
	}

	var versions int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions); err != nil {
		t.Fatalf("count: %v", err)
	}
	if versions != 2 {
		t.Errorf("schema_migrations rows = %d, want 2", versions)
	}
}

func TestRun_FailedMigrationRollsBack(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0001_broken.sql": {Data: []byte(`CREATE TABLE ok (id INTEGER); SELEKT nonsense;`)},
	}

	if _, err := run(context.Background(), db, fsys, quiet()); err == nil {
		t.Fatal("run() error = nil, want non-nil")
	}

	var versions int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions); err != nil {
		t.Fatalf("count: %v", err)
	}
	if versions != 0 {
		t.Errorf("schema_migrations rows = %d, want 0", versions)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"0001_readings.sql", "0001", "readings", true},
		{"0010_add_index.sql", "0010", "add_index", true},
		{"1_short.sql", "", "", false},
		{"0001_readings.txt", "", "", false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if v != tt.wantVersion || n != tt.wantName || ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v", tt.in, v, n, ok)
		}
	}
}
