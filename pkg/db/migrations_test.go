package db

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("%s - failed to write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"003_third.sql":  "THIRD",
		"001_first.sql":  "FIRST",
		"002_second.sql": "SECOND",
		"README.md":      "# Migrations",
		"config.json":    "{}",
	})
	if err := os.Mkdir(filepath.Join(dir, "subdir.sql"), 0o755); err != nil {
		t.Fatalf("%s - failed to create subdir: %v", migrationsTestPrefix, err)
	}

	result, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(result) != 3 {
		t.Fatalf("%s - expected 3 migrations, got %d", migrationsTestPrefix, len(result))
	}
	want := []Migration{
		{Name: "001_first.sql", SQL: "FIRST"},
		{Name: "002_second.sql", SQL: "SECOND"},
		{Name: "003_third.sql", SQL: "THIRD"},
	}
	for i, m := range want {
		if result[i] != m {
			t.Errorf("%s - migration %d = %+v, want %+v", migrationsTestPrefix, i, result[i], m)
		}
	}
}

func TestLoadMigrationFiles_EmptyDir(t *testing.T) {
	result, err := LoadMigrationFiles(t.TempDir())
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(result) != 0 {
		t.Errorf("%s - expected empty result, got %d items", migrationsTestPrefix, len(result))
	}
}

func TestLoadMigrationFiles_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Errorf("%s - expected error for non-existent directory", migrationsTestPrefix)
	}
}

func TestLoadMigrationsFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/002_b.sql": {Data: []byte("B")},
		"sql/001_a.sql": {Data: []byte("A")},
		"sql/notes.txt": {Data: []byte("ignored")},
	}
	result, err := LoadMigrationsFS(fsys, "sql")
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(result) != 2 || result[0].Name != "001_a.sql" || result[1].SQL != "B" {
		t.Errorf("%s - unexpected migrations %+v", migrationsTestPrefix, result)
	}
}

func TestMigrationStates(t *testing.T) {
	migrations := []Migration{{Name: "001_a.sql"}, {Name: "002_b.sql"}}
	states := migrationStates(migrations, map[string]bool{"001_a.sql": true, "999_gone.sql": true})
	if len(states) != 2 {
		t.Fatalf("%s - expected 2 states, got %d", migrationsTestPrefix, len(states))
	}
	if !states[0].Applied || states[1].Applied {
		t.Errorf("%s - unexpected states %+v", migrationsTestPrefix, states)
	}
}
