package remote

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"qservice/api/internal/report"
)

func TestDisabledIsInert(t *testing.T) {
	a := Disabled()
	ctx := context.Background()
	if a.Enabled() {
		t.Fatal("disabled adapter reports enabled")
	}
	got, err := a.Hydrate(ctx)
	if err != nil || got != nil {
		t.Fatalf("Hydrate = %v, %v", got, err)
	}
	if err := a.Upsert(ctx, report.Report{ID: "x"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestToRow(t *testing.T) {
	r := report.Report{
		ID:            "P-2026-01-1000",
		ProjectTitle:  "P-2026-01-1000",
		Client:        "Avadis",
		Street:        "Zollstrasse 42",
		Zip:           "8005",
		City:          "Zürich",
		Status:        report.StatusDrying,
		AssignedTo:    "MK",
		Date:          "2026-01-02",
		DryingStarted: "2026-01-03",
	}
	row, err := toRow(r)
	if err != nil {
		t.Fatalf("toRow failed: %v", err)
	}
	if row.Address != "Zollstrasse 42, 8005 Zürich" {
		t.Fatalf("unexpected address %q", row.Address)
	}
	if row.Status != "Trocknung" || row.DryingStarted != "2026-01-03" {
		t.Fatalf("unexpected row %+v", row)
	}
	var payload report.Report
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !report.Equal(payload, r) {
		t.Fatal("payload does not carry the full report")
	}

	if _, err := toRow(report.Report{}); err == nil {
		t.Fatal("expected error for report without id")
	}
}

func TestDecodePayloadFillsID(t *testing.T) {
	r, err := decodePayload("row-id", []byte(`{"client":"Avadis"}`))
	if err != nil {
		t.Fatalf("decodePayload failed: %v", err)
	}
	if r.ID != "row-id" || r.Client != "Avadis" {
		t.Fatalf("unexpected report %+v", r)
	}
	if _, err := decodePayload("x", []byte(`[`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if byVersion[match[1]] == nil {
			byVersion[match[1]] = map[string]bool{}
		}
		byVersion[match[1]][match[2]] = true
	}
	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestPostgresUpsertAndHydrate(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("QSERVICE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("QSERVICE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// second pass must be a no-op
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM damage_reports WHERE id LIKE 'test-%'`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	adapter := New(db)
	first := report.Report{ID: "test-1", Client: "Erst", Status: report.StatusIntake}
	if err := adapter.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	first.Client = "Zweit"
	if err := adapter.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM damage_reports WHERE id = 'test-1'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}

	reports, err := adapter.Hydrate(ctx)
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	var found bool
	for _, r := range reports {
		if r.ID == "test-1" {
			found = true
			if r.Client != "Zweit" {
				t.Fatalf("expected last write to win, got %q", r.Client)
			}
		}
	}
	if !found {
		t.Fatal("hydrated collection misses upserted report")
	}
}
