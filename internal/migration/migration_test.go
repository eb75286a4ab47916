package migration

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/petminder/migrations"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "petminder.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dialectFS(t *testing.T, dialect string) fs.FS {
	t.Helper()
	sub, err := fs.Sub(migrations.FS, dialect)
	if err != nil {
		t.Fatalf("failed to open embedded %s migrations: %v", dialect, err)
	}
	return sub
}

// upTo copies the embedded dialect files with a version of at most limit,
// plus any extra files.
func upTo(t *testing.T, dialect string, limit int, extra fstest.MapFS) fstest.MapFS {
	t.Helper()
	ms, err := NewRunner(nil, dialectFS(t, dialect)).ReadMigrationFiles()
	if err != nil {
		t.Fatalf("ReadMigrationFiles failed: %v", err)
	}
	out := fstest.MapFS{}
	for _, m := range ms {
		if m.Version <= limit {
			out[fmt.Sprintf("%03d_%s.sql", m.Version, m.Name)] = &fstest.MapFile{Data: []byte(m.SQL)}
		}
	}
	for name, f := range extra {
		out[name] = f
	}
	return out
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return n == 1
}

func TestEmbeddedMigrationsAreSequential(t *testing.T) {
	tests := []struct {
		dialect string
		first   string
	}{
		{dialect: "sqlite", first: "init"},
		{dialect: "postgres", first: "init"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			runner := NewRunner(nil, dialectFS(t, tt.dialect))
			ms, err := runner.ReadMigrationFiles()
			if err != nil {
				t.Fatalf("ReadMigrationFiles failed: %v", err)
			}
			if len(ms) == 0 || ms[0].Name != tt.first {
				t.Fatalf("unexpected migrations: %+v", ms)
			}
			for i, m := range ms {
				if m.Version != i+1 {
					t.Errorf("migration %q has version %d, want %d", m.Name, m.Version, i+1)
				}
				if strings.TrimSpace(m.SQL) == "" {
					t.Errorf("migration %d is empty", m.Version)
				}
			}
			latest, err := runner.GetLatestVersion()
			if err != nil || latest != len(ms) {
				t.Errorf("GetLatestVersion = %d (%v), want %d", latest, err, len(ms))
			}
		})
	}
}

func TestPostgresMigrationsInstallChangeFeed(t *testing.T) {
	ms, err := NewRunner(nil, dialectFS(t, "postgres")).ReadMigrationFiles()
	if err != nil {
		t.Fatalf("ReadMigrationFiles failed: %v", err)
	}
	var all strings.Builder
	for _, m := range ms {
		all.WriteString(m.SQL)
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS dogs", "CREATE TABLE IF NOT EXISTS reminders", "pg_notify('petminder_reminders'"} {
		if !strings.Contains(all.String(), want) {
			t.Errorf("postgres schema is missing %q", want)
		}
	}
}

func TestApplySQLiteSchema(t *testing.T) {
	db := openSQLite(t)
	runner := NewRunner(db, dialectFS(t, "sqlite"))

	var logged []string
	count, err := runner.ApplyMigrations(func(msg string) { logged = append(logged, msg) })
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	latest, _ := runner.GetLatestVersion()
	if count != latest {
		t.Errorf("applied %d migrations, want %d", count, latest)
	}
	if version, _ := runner.GetCurrentVersion(); version != latest {
		t.Errorf("schema version = %d, want %d", version, latest)
	}
	for _, table := range []string{"state", "dogs", "reminders", "logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s was not created", table)
		}
	}
	if len(logged) == 0 || !strings.Contains(logged[0], "from version 0") {
		t.Errorf("unexpected log output: %v", logged)
	}

	count, err = runner.ApplyMigrations(nil)
	if err != nil || count != 0 {
		t.Errorf("second run applied %d (%v), want 0", count, err)
	}
	if err := runner.ValidateVersion(); err != nil {
		t.Errorf("ValidateVersion failed on a current schema: %v", err)
	}
}

func TestUpgradeKeepsExistingRows(t *testing.T) {
	db := openSQLite(t)

	if _, err := NewRunner(db, upTo(t, "sqlite", 1, nil)).ApplyMigrations(nil); err != nil {
		t.Fatalf("initial migration failed: %v", err)
	}
	if tableExists(t, db, "logs") {
		t.Fatal("logs table should not exist at version 1")
	}
	if _, err := db.Exec("INSERT INTO dogs (id, name, position) VALUES ('1', 'Biscuit', 0)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	runner := NewRunner(db, dialectFS(t, "sqlite"))
	count, err := runner.ApplyMigrations(nil)
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	latest, _ := runner.GetLatestVersion()
	if count != latest-1 {
		t.Errorf("upgrade applied %d migrations, want %d", count, latest-1)
	}
	if !tableExists(t, db, "logs") {
		t.Error("logs table missing after upgrade")
	}
	var name string
	if err := db.QueryRow("SELECT name FROM dogs WHERE id = '1'").Scan(&name); err != nil || name != "Biscuit" {
		t.Errorf("existing row lost: %q (%v)", name, err)
	}
}

func TestNewerSchemaIsRejected(t *testing.T) {
	db := openSQLite(t)
	runner := NewRunner(db, dialectFS(t, "sqlite"))
	if _, err := runner.ApplyMigrations(nil); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	latest, _ := runner.GetLatestVersion()
	if err := runner.SetVersion(latest + 1); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}

	if err := runner.ValidateVersion(); err == nil || !strings.Contains(err.Error(), "upgrade petminder") {
		t.Errorf("ValidateVersion = %v, want a newer-schema error", err)
	}
	if _, err := runner.ApplyMigrations(nil); err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("ApplyMigrations = %v, want a newer-schema error", err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	db := openSQLite(t)
	files := upTo(t, "sqlite", 99, fstest.MapFS{
		"099_broken.sql": {Data: []byte("CREATE TABLE extra (id INTEGER);\nINSERT INTO no_such_table VALUES (1);")},
	})
	runner := NewRunner(db, files)

	count, err := runner.ApplyMigrations(nil)
	if err == nil || !strings.Contains(err.Error(), "migration 99 (broken)") {
		t.Fatalf("ApplyMigrations = %v, want failure in migration 99", err)
	}
	// Every earlier file committed on its own.
	if version, _ := runner.GetCurrentVersion(); version != count {
		t.Errorf("schema version = %d, want %d", version, count)
	}
	if !tableExists(t, db, "reminders") {
		t.Error("earlier migrations should stay applied")
	}
	if tableExists(t, db, "extra") {
		t.Error("the failed migration was partially applied")
	}
}

func TestInsertVersionHasNoPlaceholders(t *testing.T) {
	got := insertVersion(12)
	if got != "INSERT INTO schema_version (version) VALUES (12)" {
		t.Errorf("insertVersion(12) = %q", got)
	}
	if strings.ContainsAny(got, "?$") {
		t.Errorf("statement should work in both dialects: %q", got)
	}
}

func TestReadMigrationFilesRejectsBadNames(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name:    "missing version",
			files:   fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "expected NNN_name.sql",
		},
		{
			name:    "non-numeric version",
			files:   fstest.MapFS{"abc_init.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "invalid version number",
		},
		{
			name:    "zero version",
			files:   fstest.MapFS{"000_init.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "at least 1",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"001_init.sql":  {Data: []byte("SELECT 1;")},
				"001_again.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "duplicate migration version 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(nil, tt.files).ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadMigrationFiles = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	ms, err := NewRunner(nil, fstest.MapFS{
		"001_init.sql": {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("notes")},
	}).ReadMigrationFiles()
	if err != nil || len(ms) != 1 {
		t.Errorf("non-SQL files should be ignored, got %+v (%v)", ms, err)
	}
}
