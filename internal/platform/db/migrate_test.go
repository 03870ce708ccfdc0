package db

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	migrate "github.com/rubenv/sql-migrate"
)

func sqlFile(up, down string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("-- +migrate Up\n" + up + "\n-- +migrate Down\n" + down + "\n")}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_users.sql":    sqlFile("CREATE TABLE users (id UUID PRIMARY KEY);", "DROP TABLE users;"),
		"002_registry.sql": sqlFile("CREATE TABLE polyclinics (id UUID PRIMARY KEY);", "DROP TABLE polyclinics;"),
		"003_emr.sql":      sqlFile("CREATE TABLE medical_records (id UUID PRIMARY KEY);", "DROP TABLE medical_records;"),
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	first := migrations[0]
	if first.Id != "001_users.sql" || versionOf(first) != 1 {
		t.Errorf("unexpected first migration: %+v", first)
	}
	if len(first.Up) != 1 || first.Up[0] != "CREATE TABLE users (id UUID PRIMARY KEY);\n" {
		t.Errorf("unexpected up statements: %q", first.Up)
	}
	if len(first.Down) != 1 {
		t.Errorf("expected one down statement, got %q", first.Down)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": sqlFile("SELECT 10;", "SELECT 0;"),
		"002_second.sql": sqlFile("SELECT 2;", "SELECT 0;"),
		"001_first.sql":  sqlFile("SELECT 1;", "SELECT 0;"),
		"005_middle.sql": sqlFile("SELECT 5;", "SELECT 0;"),
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expected := []int{1, 2, 5, 10}
	if len(migrations) != len(expected) {
		t.Fatalf("expected %d migrations, got %d", len(expected), len(migrations))
	}
	for i, v := range expected {
		if got := versionOf(migrations[i]); got != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, got)
		}
	}
}

func TestLoadMigrations_IgnoresOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql": sqlFile("SELECT 1;", "SELECT 0;"),
		"notes.txt":     {Data: []byte("not sql")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoadMigrations_MissingAnnotation(t *testing.T) {
	fsys := fstest.MapFS{
		"001_bare.sql": {Data: []byte("CREATE TABLE users (id UUID);")},
	}

	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Error("expected error for a file without migrate annotations")
	}
}

func TestBuildStatus(t *testing.T) {
	migrations := []*migrate.Migration{
		{Id: "001_users.sql"},
		{Id: "002_registry.sql"},
		{Id: "003_emr.sql"},
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	statuses := buildStatus(migrations, []*migrate.MigrationRecord{{Id: "001_users.sql", AppliedAt: at}})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Error("expected migration 002 to be pending")
	}
	if statuses[2].Version != 3 || statuses[2].Applied {
		t.Errorf("unexpected status for 003: %+v", statuses[2])
	}
}

func TestVersionOf_NoPrefix(t *testing.T) {
	if v := versionOf(&migrate.Migration{Id: "init.sql"}); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
}

func TestDown_RejectsZeroSteps(t *testing.T) {
	if _, err := NewMigrator(nil, fstest.MapFS{}).Down(context.Background(), 0); err == nil {
		t.Error("expected error for zero steps")
	}
}
