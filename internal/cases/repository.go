// Package cases owns the in-memory case collection and the save path that
// writes it to the local store and mirrors it to the remote table.
package cases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"qservice/api/internal/remote"
	"qservice/api/internal/report"
)

var ErrNotFound = errors.New("report not found")

// RemoteWriteError means the local write succeeded but the remote mirror
// did not. The report stays queued for RetryPending.
type RemoteWriteError struct {
	ID  string
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote save of %s failed: %v", e.ID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

type LocalStore interface {
	Load(ctx context.Context) []report.Report
	Save(ctx context.Context, reports []report.Report) error
	Ping(ctx context.Context) error
}

// Indexer receives every saved report. Implementations must not block.
type Indexer interface {
	IndexReport(ctx context.Context, r report.Report)
}

// Recorder keeps a snapshot trail of explicit saves.
type Recorder interface {
	Record(ctx context.Context, r report.Report, message string) error
}

type Option func(*Repository)

func WithIndexer(i Indexer) Option   { return func(r *Repository) { r.indexer = i } }
func WithRecorder(h Recorder) Option { return func(r *Repository) { r.recorder = h } }
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

type Repository struct {
	mu       sync.Mutex
	local    LocalStore
	remote   remote.Adapter
	reports  []report.Report
	pending  map[string]struct{}
	indexer  Indexer
	recorder Recorder
	now      func() time.Time
}

func New(local LocalStore, adapter remote.Adapter, opts ...Option) *Repository {
	if adapter == nil {
		adapter = remote.Disabled()
	}
	repo := &Repository{
		local:   local,
		remote:  adapter,
		reports: []report.Report{},
		pending: map[string]struct{}{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Bootstrap loads the local collection and then lets the remote side replace
// it when the remote returns at least one row. Remote failures are logged and
// the local data is kept.
func (r *Repository) Bootstrap(ctx context.Context) error {
	local := r.local.Load(ctx)

	r.mu.Lock()
	r.reports = local
	r.mu.Unlock()

	if !r.remote.Enabled() {
		return nil
	}
	hydrated, err := r.remote.Hydrate(ctx)
	if err != nil {
		log.Printf("cases: remote hydrate failed, keeping %d local reports: %v", len(local), err)
		return nil
	}
	if len(hydrated) == 0 {
		return nil
	}

	r.mu.Lock()
	r.reports = hydrated
	err = r.local.Save(ctx, hydrated)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persist hydrated reports: %w", err)
	}
	log.Printf("cases: hydrated %d reports from remote", len(hydrated))
	return nil
}

// Save assigns an id when needed, replaces the report in place or prepends
// it, writes the whole collection locally and then upserts it remotely.
// A remote failure returns *RemoteWriteError with the local write kept.
func (r *Repository) Save(ctx context.Context, in report.Report, silent bool) (report.Report, error) {
	saved := in.Clone()
	derived := strings.TrimSpace(saved.ID) == ""
	report.AssignID(&saved, r.now())

	r.mu.Lock()
	if derived {
		saved.ID = r.freeIDLocked(saved.ID)
	}
	previous, idx := r.indexOf(saved.ID)
	var prevStatus report.Status
	next := make([]report.Report, 0, len(r.reports)+1)
	if idx >= 0 {
		prevStatus = previous.Status
		next = append(next, r.reports...)
		next[idx] = saved
	} else {
		next = append(next, saved)
		next = append(next, r.reports...)
	}
	if err := r.local.Save(ctx, next); err != nil {
		r.mu.Unlock()
		return report.Report{}, fmt.Errorf("save locally: %w", err)
	}
	r.reports = next
	r.mu.Unlock()

	if r.indexer != nil {
		r.indexer.IndexReport(ctx, saved)
	}
	if !silent && r.recorder != nil {
		if err := r.recorder.Record(ctx, saved, commitMessage(idx >= 0, prevStatus, saved)); err != nil {
			log.Printf("cases: history for %s: %v", saved.ID, err)
		}
	}

	if !r.remote.Enabled() {
		return saved, nil
	}
	if err := r.remote.Upsert(ctx, saved); err != nil {
		r.mu.Lock()
		r.pending[saved.ID] = struct{}{}
		r.mu.Unlock()
		return saved, &RemoteWriteError{ID: saved.ID, Err: err}
	}
	r.mu.Lock()
	delete(r.pending, saved.ID)
	r.mu.Unlock()
	return saved, nil
}

// freeIDLocked returns id, or id with the first free "-N" suffix when
// another case already uses it. A new case never takes over an existing one.
func (r *Repository) freeIDLocked(id string) string {
	if _, idx := r.indexOf(id); idx < 0 {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, idx := r.indexOf(candidate); idx < 0 {
			return candidate
		}
	}
}

func commitMessage(existed bool, prev report.Status, r report.Report) string {
	switch {
	case !existed:
		return fmt.Sprintf("Create %s", r.ID)
	case prev != r.Status && r.Status != "":
		return fmt.Sprintf("Status %s -> %s", prev, r.Status)
	}
	return fmt.Sprintf("Update %s", r.ID)
}

func (r *Repository) indexOf(id string) (report.Report, int) {
	for i, existing := range r.reports {
		if existing.ID == id {
			return existing, i
		}
	}
	return report.Report{}, -1
}

func (r *Repository) List() []report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]report.Report, len(r.reports))
	for i, rep := range r.reports {
		out[i] = rep.Clone()
	}
	return out
}

func (r *Repository) Get(id string) (report.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, idx := r.indexOf(id)
	if idx < 0 {
		return report.Report{}, ErrNotFound
	}
	return rep.Clone(), nil
}

// Pending lists ids whose last remote write failed.
func (r *Repository) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RetryPending re-upserts the current local copy of every pending report and
// returns how many went through.
func (r *Repository) RetryPending(ctx context.Context) (int, error) {
	if !r.remote.Enabled() {
		return 0, nil
	}
	var (
		done    int
		lastErr error
	)
	for _, id := range r.Pending() {
		rep, err := r.Get(id)
		if errors.Is(err, ErrNotFound) {
			r.mu.Lock()
			delete(r.pending, id)
			r.mu.Unlock()
			continue
		}
		if err := r.remote.Upsert(ctx, rep); err != nil {
			lastErr = err
			continue
		}
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		done++
	}
	return done, lastErr
}

func (r *Repository) RemoteEnabled() bool { return r.remote.Enabled() }

// Ping checks the local store and, when configured, the remote table.
func (r *Repository) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{"local": r.local.Ping(ctx)}
	if r.remote.Enabled() {
		checks["remote"] = r.remote.Ping(ctx)
	}
	return checks
}
