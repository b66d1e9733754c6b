package cases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qservice/api/internal/report"
)

type fakeLocal struct {
	mu      sync.Mutex
	loaded  []report.Report
	saved   [][]report.Report
	saveErr error
}

func (f *fakeLocal) Load(context.Context) []report.Report { return f.loaded }

func (f *fakeLocal) Save(_ context.Context, reports []report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, reports)
	return nil
}

func (f *fakeLocal) Ping(context.Context) error { return nil }

func (f *fakeLocal) last() []report.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

type fakeRemote struct {
	hydrateFn func(context.Context) ([]report.Report, error)
	upsertFn  func(context.Context, report.Report) error
}

func (f *fakeRemote) Enabled() bool { return true }

func (f *fakeRemote) Hydrate(ctx context.Context) ([]report.Report, error) {
	if f.hydrateFn == nil {
		return nil, nil
	}
	return f.hydrateFn(ctx)
}

func (f *fakeRemote) Upsert(ctx context.Context, r report.Report) error {
	if f.upsertFn == nil {
		return nil
	}
	return f.upsertFn(ctx, r)
}

func (f *fakeRemote) Ping(context.Context) error { return nil }

type recordCall struct {
	id      string
	message string
}

type fakeRecorder struct {
	calls []recordCall
}

func (f *fakeRecorder) Record(_ context.Context, r report.Report, message string) error {
	f.calls = append(f.calls, recordCall{id: r.ID, message: message})
	return nil
}

func fixedClock() time.Time { return time.UnixMilli(1767225600000) }

func TestSaveAssignsIDFromTitle(t *testing.T) {
	local := &fakeLocal{}
	repo := New(local, nil, WithClock(fixedClock))
	ctx := context.Background()

	saved, err := repo.Save(ctx, report.Report{ProjectTitle: "P-2026-01-1000"}, false)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID != "P-2026-01-1000" {
		t.Fatalf("unexpected id %q", saved.ID)
	}

	if _, err := repo.Save(ctx, saved, true); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	persisted := local.last()
	if len(persisted) != 1 || persisted[0].ID != "P-2026-01-1000" {
		t.Fatalf("expected exactly one persisted report, got %+v", persisted)
	}
}

func TestSaveGeneratesTemporaryID(t *testing.T) {
	repo := New(&fakeLocal{}, nil, WithClock(fixedClock))
	saved, err := repo.Save(context.Background(), report.Report{}, true)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID != "TMP-1767225600000" {
		t.Fatalf("unexpected id %q", saved.ID)
	}
}

func TestNewCaseWithTakenTitleKeepsExistingCase(t *testing.T) {
	local := &fakeLocal{}
	repo := New(local, nil, WithClock(fixedClock))
	ctx := context.Background()

	first, err := repo.Save(ctx, report.Report{ProjectTitle: "P-2026-01-1000", Client: "Erster Kunde"}, true)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := repo.Save(ctx, report.Report{ProjectTitle: "P-2026-01-1000", Client: "Zweiter Kunde"}, true)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	third, err := repo.Save(ctx, report.Report{ProjectTitle: "P-2026-01-1000", Client: "Dritter Kunde"}, true)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if first.ID != "P-2026-01-1000" || second.ID != "P-2026-01-1000-2" || third.ID != "P-2026-01-1000-3" {
		t.Fatalf("unexpected ids %q %q %q", first.ID, second.ID, third.ID)
	}
	kept, err := repo.Get("P-2026-01-1000")
	if err != nil || kept.Client != "Erster Kunde" {
		t.Fatalf("existing case was replaced: %+v %v", kept, err)
	}
	if persisted := local.last(); len(persisted) != 3 {
		t.Fatalf("expected 3 persisted reports, got %d", len(persisted))
	}

	// An explicit id still updates in place.
	second.Client = "Zweiter Kunde AG"
	if _, err := repo.Save(ctx, second, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got, _ := repo.Get("P-2026-01-1000-2"); got.Client != "Zweiter Kunde AG" || len(repo.List()) != 3 {
		t.Fatalf("update by id failed: %+v", got)
	}
}

func TestSavePrependsNewAndReplacesExisting(t *testing.T) {
	local := &fakeLocal{loaded: []report.Report{{ID: "old", Client: "A"}}}
	repo := New(local, nil)
	ctx := context.Background()
	if err := repo.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if _, err := repo.Save(ctx, report.Report{ID: "new"}, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := repo.Save(ctx, report.Report{ID: "old", Client: "B"}, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list := repo.List()
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[1].Client != "B" {
		t.Fatalf("expected replacement in place, got %q", list[1].Client)
	}
}

func TestRemoteFailureKeepsLocalAndQueues(t *testing.T) {
	local := &fakeLocal{}
	failing := true
	rem := &fakeRemote{upsertFn: func(context.Context, report.Report) error {
		if failing {
			return errors.New("connection refused")
		}
		return nil
	}}
	repo := New(local, rem)
	ctx := context.Background()

	_, err := repo.Save(ctx, report.Report{ID: "R1"}, true)
	var remoteErr *RemoteWriteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteWriteError, got %v", err)
	}
	if remoteErr.ID != "R1" {
		t.Fatalf("unexpected id %q", remoteErr.ID)
	}
	if got := local.last(); len(got) != 1 {
		t.Fatalf("local write must not be rolled back, got %+v", got)
	}
	if pending := repo.Pending(); len(pending) != 1 || pending[0] != "R1" {
		t.Fatalf("unexpected pending %v", pending)
	}

	failing = false
	done, err := repo.RetryPending(ctx)
	if err != nil || done != 1 {
		t.Fatalf("RetryPending = %d, %v", done, err)
	}
	if pending := repo.Pending(); len(pending) != 0 {
		t.Fatalf("expected empty queue, got %v", pending)
	}
}

func TestLocalFailureIsReturned(t *testing.T) {
	local := &fakeLocal{saveErr: errors.New("disk full")}
	repo := New(local, nil)
	if _, err := repo.Save(context.Background(), report.Report{ID: "R1"}, false); err == nil {
		t.Fatal("expected local failure")
	}
	if len(repo.List()) != 0 {
		t.Fatal("collection must not change when the local write fails")
	}
}

func TestBootstrapHydration(t *testing.T) {
	cases := []struct {
		name    string
		remote  []report.Report
		err     error
		wantIDs []string
	}{
		{name: "remote rows replace local", remote: []report.Report{{ID: "remote-1"}}, wantIDs: []string{"remote-1"}},
		{name: "empty remote keeps local", remote: nil, wantIDs: []string{"local-1"}},
		{name: "remote error keeps local", err: errors.New("timeout"), wantIDs: []string{"local-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := &fakeLocal{loaded: []report.Report{{ID: "local-1"}}}
			rem := &fakeRemote{hydrateFn: func(context.Context) ([]report.Report, error) {
				return tc.remote, tc.err
			}}
			repo := New(local, rem)
			if err := repo.Bootstrap(context.Background()); err != nil {
				t.Fatalf("Bootstrap failed: %v", err)
			}
			list := repo.List()
			if len(list) != len(tc.wantIDs) {
				t.Fatalf("expected %d reports, got %d", len(tc.wantIDs), len(list))
			}
			for i, id := range tc.wantIDs {
				if list[i].ID != id {
					t.Fatalf("report %d = %q, want %q", i, list[i].ID, id)
				}
			}
		})
	}
}

func TestHistoryOnlyForExplicitSaves(t *testing.T) {
	rec := &fakeRecorder{}
	repo := New(&fakeLocal{}, nil, WithRecorder(rec))
	ctx := context.Background()

	if _, err := repo.Save(ctx, report.Report{ID: "R1", Status: report.StatusIntake}, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := repo.Save(ctx, report.Report{ID: "R1", Status: report.StatusIntake, Client: "x"}, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := repo.Save(ctx, report.Report{ID: "R1", Status: report.StatusClosed}, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(rec.calls))
	}
	if rec.calls[0].message != "Create R1" {
		t.Fatalf("unexpected message %q", rec.calls[0].message)
	}
	if rec.calls[1].message != "Status Schadenaufnahme -> Abgeschlossen" {
		t.Fatalf("unexpected message %q", rec.calls[1].message)
	}
}
