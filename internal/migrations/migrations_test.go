package migrations_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/playperu/colorwar/internal/database"
	"github.com/playperu/colorwar/internal/migrations"
)

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, slog.Default()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	want := []string{
		"sessions", "auth", "teams", "spinner_rounds", "finder_rounds", "current_rounds",
		"finder_beacons", "finder_hints", "finder_facts", "finder_results", "finder_winners",
	}
	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var teams int
	if err := db.QueryRow("SELECT COUNT(*) FROM teams").Scan(&teams); err != nil {
		t.Fatalf("counting teams: %v", err)
	}
	if teams != 5 {
		t.Errorf("teams = %d, want 5", teams)
	}

	var pointers int
	if err := db.QueryRow("SELECT COUNT(*) FROM current_rounds").Scan(&pointers); err != nil {
		t.Fatalf("counting current_rounds: %v", err)
	}
	if pointers != 1 {
		t.Errorf("current_rounds rows = %d, want 1", pointers)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, slog.Default()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db, slog.Default()); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}

func TestCurrentRoundRowIsSingleton(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, slog.Default()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	if _, err := db.Exec("INSERT INTO current_rounds (id) VALUES (2)"); err == nil {
		t.Fatal("second current_rounds row was accepted")
	}
}
