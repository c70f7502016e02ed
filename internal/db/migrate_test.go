package db_test

import (
	"context"
	"testing"
	"testing/fstest"

	dbfs "github.com/garnizeh/jobmarket/db"
	"github.com/garnizeh/jobmarket/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least 1 migration recorded, got %d", count)
	}

	for _, table := range []string{"users", "jobs", "applications", "provider_verifications", "outbox", "dead_letter_outbox"} {
		var name string
		if err := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}
}

func TestMigrate_OrderAndFailureRollback(t *testing.T) {
	ctx := context.Background()
	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	migrations := fstest.MapFS{
		"migrations/0002_more.sql": {Data: []byte(`INSERT INTO t (v) VALUES ('second');`)},
		"migrations/0001_t.sql":    {Data: []byte(`CREATE TABLE t (v TEXT); INSERT INTO t (v) VALUES ('first');`)},
		"migrations/0003_bad.sql":  {Data: []byte(`INSERT INTO t (v) VALUES ('third'); THIS IS NOT SQL;`)},
		"migrations/README.md":     {Data: []byte(`ignored`)},
	}

	if err := db.Migrate(ctx, d, migrations); err == nil {
		t.Fatalf("expected broken migration to fail")
	}

	var vals []string
	rows, err := d.QueryRows(ctx, `SELECT v FROM t ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		vals = append(vals, v)
	}
	rows.Close()

	if len(vals) != 2 || vals[0] != "first" || vals[1] != "second" {
		t.Fatalf("expected only the first two migrations applied in order, got %v", vals)
	}

	var recorded int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = '0003_bad'`).Scan(&recorded); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if recorded != 0 {
		t.Fatalf("failed migration must not be recorded")
	}
}

func TestMigrate_MissingDir(t *testing.T) {
	ctx := context.Background()
	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, fstest.MapFS{}); err == nil {
		t.Fatalf("expected error when migrations dir is missing")
	}
}
