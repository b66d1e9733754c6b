package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qservice/api/internal/report"
)

type recorder struct {
	mu     sync.Mutex
	saved  []report.Report
	saveCh chan report.Report
	err    error
}

func newRecorder() *recorder {
	return &recorder{saveCh: make(chan report.Report, 16)}
}

func (r *recorder) save(_ context.Context, rep report.Report) error {
	r.mu.Lock()
	r.saved = append(r.saved, rep)
	err := r.err
	r.mu.Unlock()
	r.saveCh <- rep
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func TestUnchangedBufferSavesOnce(t *testing.T) {
	rec := newRecorder()
	seed := report.Report{ID: "R1"}
	c := New(time.Hour, seed, rec.save)
	ctx := context.Background()

	changed := seed
	changed.Client = "Avadis"
	c.Changed(changed)
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	c.Changed(changed)
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := rec.count(); got != 1 {
		t.Fatalf("expected exactly one save, got %d", got)
	}
}

func TestSeedIsNotSaved(t *testing.T) {
	rec := newRecorder()
	seed := report.Report{ID: "R1", Client: "A"}
	c := New(time.Millisecond, seed, rec.save)
	c.Changed(seed)
	time.Sleep(20 * time.Millisecond)
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := rec.count(); got != 0 {
		t.Fatalf("expected no save for an unchanged buffer, got %d", got)
	}
}

func TestDebounceKeepsLastValue(t *testing.T) {
	rec := newRecorder()
	c := New(30*time.Millisecond, report.Report{ID: "R1"}, rec.save)
	defer c.Close(context.Background())

	for _, client := range []string{"A", "Av", "Ava", "Avadis"} {
		c.Changed(report.Report{ID: "R1", Client: client})
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case got := <-rec.saveCh:
		if got.Client != "Avadis" {
			t.Fatalf("expected last buffer, got %q", got.Client)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save never fired")
	}

	time.Sleep(60 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Fatalf("expected one save after the quiet period, got %d", got)
	}
}

func TestCloseFlushesPendingEdit(t *testing.T) {
	rec := newRecorder()
	c := New(time.Hour, report.Report{ID: "R1"}, rec.save)

	c.Changed(report.Report{ID: "R1", Notes: "last words"})
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if rec.count() != 1 || rec.saved[0].Notes != "last words" {
		t.Fatalf("expected final flush, got %+v", rec.saved)
	}

	c.Changed(report.Report{ID: "R1", Notes: "after close"})
	if err := c.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStaleTickKeepsNewerTimer(t *testing.T) {
	rec := newRecorder()
	c := New(time.Hour, report.Report{ID: "R1"}, rec.save)
	defer c.Close(context.Background())

	c.Changed(report.Report{ID: "R1", Client: "A"})
	c.mu.Lock()
	stale := c.timerGen
	c.mu.Unlock()
	c.Changed(report.Report{ID: "R1", Client: "Avadis"})

	// the first timer fires late, after the second change replaced it
	c.fire(stale)

	c.mu.Lock()
	timer := c.timer
	c.mu.Unlock()
	if timer == nil {
		t.Fatal("stale tick dropped the pending timer")
	}
	if got := rec.count(); got != 0 {
		t.Fatalf("stale tick saved early: %d saves", got)
	}

	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	c.mu.Lock()
	timer = c.timer
	c.mu.Unlock()
	if timer != nil {
		t.Fatal("Flush left a timer running")
	}
	if rec.count() != 1 || rec.saved[0].Client != "Avadis" {
		t.Fatalf("expected one save of the latest buffer, got %+v", rec.saved)
	}
}

func TestSavesAreSerialized(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		order    []string
	)
	save := func(_ context.Context, r report.Report) error {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		order = append(order, r.Notes)
		mu.Unlock()
		return nil
	}
	c := New(time.Hour, report.Report{ID: "R1"}, save)

	var wg sync.WaitGroup
	for _, note := range []string{"1", "2", "3"} {
		c.Changed(report.Report{ID: "R1", Notes: note})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Flush(context.Background())
		}()
		time.Sleep(time.Millisecond)
	}
	wg.Wait()
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Fatalf("expected at most one save in flight, saw %d", maxSeen)
	}
	if len(order) == 0 || order[len(order)-1] != "3" {
		t.Fatalf("expected the last edit to be saved last, got %v", order)
	}
}

func TestFailedSaveIsRetried(t *testing.T) {
	rec := newRecorder()
	rec.err = errors.New("disk full")
	var reported error
	c := New(time.Hour, report.Report{ID: "R1"}, rec.save, WithErrorHandler(func(_ report.Report, err error) {
		reported = err
	}))
	ctx := context.Background()

	c.Changed(report.Report{ID: "R1", Client: "A"})
	if err := c.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if reported == nil {
		t.Fatal("error handler not called")
	}
	if !c.Dirty() {
		t.Fatal("buffer must stay dirty after a failed save")
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := rec.count(); got != 2 {
		t.Fatalf("expected retry on close, got %d saves", got)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	fired := make(chan int, 4)
	for i := 1; i <= 3; i++ {
		n := i
		d.Trigger(func() { fired <- n })
	}
	select {
	case n := <-fired:
		if n != 3 {
			t.Fatalf("expected last trigger to run, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}

	d.Trigger(func() { fired <- 99 })
	if !d.Stop() {
		t.Fatal("expected pending run to be cancelled")
	}
	select {
	case n := <-fired:
		t.Fatalf("cancelled run fired: %d", n)
	case <-time.After(50 * time.Millisecond):
	}
}
