package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"qservice/api/internal/report"
)

func TestRecordHistorySnapshot(t *testing.T) {
	svc := New(t.TempDir())
	ctx := context.Background()

	r := report.Report{ID: "P-2026-01-1000", Client: "Livit AG", Status: report.StatusIntake}
	if err := svc.Record(ctx, r, "Create P-2026-01-1000"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Unchanged content must not add a commit.
	if err := svc.Record(ctx, r, "Update P-2026-01-1000"); err != nil {
		t.Fatalf("Record() unchanged error = %v", err)
	}

	updated := r
	updated.Status = report.StatusDrying
	updated.Rooms = []report.Room{{ID: "r1", Name: "Bad"}}
	if err := svc.Record(ctx, updated, "Status Schadenaufnahme -> Trocknung"); err != nil {
		t.Fatalf("Record() update error = %v", err)
	}

	entries, err := svc.History(r.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Message, "Status Schadenaufnahme -> Trocknung") {
		t.Fatalf("expected newest first, got %q", entries[0].Message)
	}
	var fields []string
	for _, c := range entries[0].Changes {
		fields = append(fields, c.Field)
	}
	if strings.Join(fields, ",") != "rooms,status" {
		t.Fatalf("unexpected changes %v", fields)
	}

	limited, err := svc.History(r.ID, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d entries (%v)", len(limited), err)
	}

	first, entry, err := svc.Snapshot(r.ID, entries[1].Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if first.Status != report.StatusIntake || entry.Hash != entries[1].Hash {
		t.Fatalf("unexpected snapshot %+v %+v", first.Status, entry)
	}
}

func TestHistoryMissingReport(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History("nope", 10); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	if err := svc.Record(context.Background(), report.Report{}, "x"); err == nil {
		t.Fatal("expected error for report without id")
	}
}

func TestRecordConcurrentSaves(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := report.Report{ID: "R-1", Notes: strings.Repeat("x", i+1)}
			if err := svc.Record(context.Background(), r, "Update R-1"); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := svc.History("R-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 commits, got %d", len(entries))
	}
}

func TestDiff(t *testing.T) {
	from := report.Report{Client: "A", Images: []report.Image{{}}}
	to := report.Report{Client: "B"}
	changes := Diff(from, to)
	if len(changes) != 2 || changes[0].Field != "client" || changes[1] != (Change{"images", "1", "0"}) {
		t.Fatalf("unexpected diff %+v", changes)
	}
	if len(Diff(to, to)) != 0 {
		t.Fatal("expected no changes for identical reports")
	}
}

func TestRepoPathIsSanitized(t *testing.T) {
	svc := New("/base")
	if got := svc.repoPath("../P 1/x"); got != "/base/.._P_1_x" {
		t.Fatalf("unexpected path %q", got)
	}
}
