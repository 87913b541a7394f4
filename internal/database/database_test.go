package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/playperu/colorwar/internal/database"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEach(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE nums (n INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, n := range []int{3, 1, 2} {
		if _, err := db.ExecContext(ctx, `INSERT INTO nums (n) VALUES (?)`, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	var got []int
	err := database.Each(ctx, db, `SELECT n FROM nums WHERE n >= ? ORDER BY n`, func(rows *sql.Rows) error {
		var n int
		if err := rows.Scan(&n); err != nil {
			return err
		}
		got = append(got, n)
		return nil
	}, 2)
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("got %v, want [2 3]", got)
	}

	stop := errors.New("stop")
	err = database.Each(ctx, db, `SELECT n FROM nums`, func(*sql.Rows) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want callback error", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE keys (k TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO keys (k) VALUES ('a')`); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := db.ExecContext(ctx, `INSERT INTO keys (k) VALUES ('a')`)
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !database.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if database.IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true")
	}
	if database.IsUniqueViolation(errors.New("disk I/O error")) {
		t.Error("unrelated error reported as unique violation")
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := database.Placeholders(tt.n); got != tt.want {
			t.Errorf("Placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
