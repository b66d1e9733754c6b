package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"qservice/api/internal/report"
)

type fakeCases struct {
	listFn    func() []report.Report
	pendingFn func() []string
	retryFn   func(ctx context.Context) (int, error)
}

func (f *fakeCases) List() []report.Report { return f.listFn() }
func (f *fakeCases) Pending() []string     { return f.pendingFn() }
func (f *fakeCases) RetryPending(ctx context.Context) (int, error) {
	return f.retryFn(ctx)
}

type fakeIndexer struct {
	reindexFn func(ctx context.Context, reports []report.Report)
}

func (f *fakeIndexer) Reindex(ctx context.Context, reports []report.Report) {
	f.reindexFn(ctx, reports)
}

func TestSpecsParse(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, spec := range []string{RetrySpec, ReindexSpec} {
		sched, err := parser.Parse(spec)
		if err != nil {
			t.Fatalf("parse %q: %v", spec, err)
		}
		from := time.Date(2026, 3, 14, 10, 0, 30, 0, time.UTC)
		if next := sched.Next(from); next.Second() != 0 {
			t.Fatalf("%q should fire on whole minutes, got %v", spec, next)
		}
	}
}

func TestRetrySkippedWithoutPending(t *testing.T) {
	calls := 0
	cases := &fakeCases{
		pendingFn: func() []string { return nil },
		retryFn: func(context.Context) (int, error) {
			calls++
			return 0, nil
		},
	}
	s, err := New(cases, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.retryPending()
	if calls != 0 {
		t.Fatalf("expected no retry without pending writes, got %d", calls)
	}
}

func TestRetryRunsWithPending(t *testing.T) {
	calls := 0
	cases := &fakeCases{
		pendingFn: func() []string { return []string{"A", "B"} },
		retryFn: func(ctx context.Context) (int, error) {
			calls++
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected a deadline on the retry context")
			}
			return 1, errors.New("remote down")
		},
	}
	s, err := New(cases, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.retryPending()
	if calls != 1 {
		t.Fatalf("expected one retry, got %d", calls)
	}
}

func TestReindexPassesCollection(t *testing.T) {
	reports := []report.Report{{ID: "A"}, {ID: "B"}}
	var got []report.Report
	cases := &fakeCases{listFn: func() []report.Report { return reports }}
	idx := &fakeIndexer{reindexFn: func(_ context.Context, r []report.Report) { got = r }}

	s, err := New(cases, idx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Fatalf("expected 2 jobs, got %d", n)
	}
	s.reindex()
	if len(got) != 2 {
		t.Fatalf("expected collection to be reindexed, got %d", len(got))
	}

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
