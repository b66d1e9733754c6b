package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"qservice/api/internal/autosave"
	"qservice/api/internal/cases"
	"qservice/api/internal/editor"
	"qservice/api/internal/extraction"
	"qservice/api/internal/report"
	"qservice/api/internal/util"
)

const (
	viewEdit    = "edit"
	viewDetails = "details"
)

// EditSession is one open intake form: the edit buffer, the auto-save
// controller attached to it and the import preview in progress.
type EditSession struct {
	ID string

	svc      *Service
	editor   *editor.Editor
	autosave *autosave.Controller
	draft    *autosave.Debouncer
	extract  extractor

	// saveMu orders auto-saves and explicit saves of this session.
	saveMu sync.Mutex

	mu         sync.Mutex
	view       string
	assignedID string
	lastErr    string
	savedAt    *time.Time
	preview    *extraction.Preview
	importErr  string
	importRuns int
	originals  []Upload
}

type SessionState struct {
	ID        string        `json:"id"`
	View      string        `json:"view"`
	Dirty     bool          `json:"dirty"`
	LastError string        `json:"lastError,omitempty"`
	SavedAt   *time.Time    `json:"savedAt,omitempty"`
	Report    report.Report `json:"report"`
	Import    ImportState   `json:"import"`
}

type ImportState struct {
	Busy    bool                `json:"busy"`
	Preview *extraction.Preview `json:"preview,omitempty"`
	Error   string              `json:"error,omitempty"`
	Files   []string            `json:"files,omitempty"`
}

func newEditSession(svc *Service, seed *report.Report) *EditSession {
	sess := &EditSession{
		ID:   util.NewID("sess"),
		svc:  svc,
		view: viewEdit,
	}
	sess.editor = editor.New(seed, editor.WithClock(svc.now))
	sess.autosave = autosave.New(svc.cfg.AutoSaveDelay, sess.editor.Snapshot(), sess.autoSave,
		autosave.WithSaveTimeout(svc.cfg.SaveTimeout),
		autosave.WithErrorHandler(sess.autoSaveFailed),
	)
	sess.editor.OnChange(sess.autosave.Changed)
	sess.draft = autosave.NewDebouncer(svc.cfg.ImportDebounce)
	sess.extract = svc.newExtractor()
	return sess
}

func (sess *EditSession) State() SessionState {
	snapshot := sess.editor.Snapshot()
	dirty := sess.autosave.Dirty()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	state := SessionState{
		ID:        sess.ID,
		View:      sess.view,
		Dirty:     dirty,
		LastError: sess.lastErr,
		SavedAt:   sess.savedAt,
		Report:    snapshot,
		Import: ImportState{
			Busy:  sess.importRuns > 0,
			Error: sess.importErr,
		},
	}
	if sess.preview != nil {
		p := *sess.preview
		state.Import.Preview = &p
	}
	for _, f := range sess.originals {
		state.Import.Files = append(state.Import.Files, f.Name)
	}
	return state
}

// Apply runs one editor mutation. The auto-save controller sees the change
// through the editor hook.
func (sess *EditSession) Apply(fn func(*editor.Editor) (report.Report, error)) (SessionState, error) {
	if _, err := fn(sess.editor); err != nil {
		return SessionState{}, err
	}
	sess.mu.Lock()
	sess.view = viewEdit
	sess.mu.Unlock()
	return sess.State(), nil
}

// Submit normalises the buffer and saves it explicitly. A remote failure is
// returned with the local write kept and the session state current.
func (sess *EditSession) Submit(ctx context.Context) (SessionState, error) {
	r, err := sess.editor.Submit()
	if err != nil {
		return SessionState{}, err
	}
	return sess.persist(ctx, r)
}

func (sess *EditSession) CloseProject(ctx context.Context, confirmed bool) (SessionState, error) {
	r, err := sess.editor.CloseProject(confirmed)
	if err != nil {
		return SessionState{}, err
	}
	return sess.persist(ctx, r)
}

func (sess *EditSession) Reactivate(ctx context.Context, confirmed bool) (SessionState, error) {
	r, err := sess.editor.Reactivate(confirmed)
	if err != nil {
		return SessionState{}, err
	}
	return sess.persist(ctx, r)
}

func (sess *EditSession) persist(ctx context.Context, r report.Report) (SessionState, error) {
	sess.saveMu.Lock()
	saved, err := sess.svc.cases.Save(ctx, sess.withAssignedID(r), false)
	var remoteErr *cases.RemoteWriteError
	if err != nil && !errors.As(err, &remoteErr) {
		sess.saveMu.Unlock()
		return SessionState{}, err
	}
	sess.adopt(saved, remoteErr)
	sess.saveMu.Unlock()

	sess.mu.Lock()
	sess.view = viewDetails
	sess.mu.Unlock()
	return sess.State(), err
}

// autoSave is the controller's save function. It runs on the writer
// goroutine. A failed remote mirror is not an auto-save failure: the local
// write went through and the report waits in the retry queue.
func (sess *EditSession) autoSave(ctx context.Context, r report.Report) error {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	saved, err := sess.svc.cases.Save(ctx, sess.withAssignedID(r), true)
	var remoteErr *cases.RemoteWriteError
	if err != nil && !errors.As(err, &remoteErr) {
		return err
	}
	if remoteErr != nil {
		log.Printf("app: session %s: %v", sess.ID, remoteErr)
	}
	sess.adopt(saved, remoteErr)
	return nil
}

func (sess *EditSession) autoSaveFailed(r report.Report, err error) {
	log.Printf("app: session %s: auto-save of %q failed: %v", sess.ID, r.ID, err)
	sess.mu.Lock()
	sess.lastErr = err.Error()
	sess.mu.Unlock()
}

// withAssignedID reuses the id handed out by an earlier save so a new
// report is never stored twice under different generated ids.
func (sess *EditSession) withAssignedID(r report.Report) report.Report {
	if r.ID != "" {
		return r
	}
	sess.mu.Lock()
	r.ID = sess.assignedID
	sess.mu.Unlock()
	return r
}

// adopt writes the saved id back into the buffer and tells the controller
// what is now persisted. Callers hold saveMu.
func (sess *EditSession) adopt(saved report.Report, remoteErr error) {
	now := sess.svc.now()
	sess.mu.Lock()
	sess.assignedID = saved.ID
	sess.savedAt = &now
	sess.lastErr = ""
	if remoteErr != nil {
		sess.lastErr = remoteErr.Error()
	}
	sess.mu.Unlock()

	if sess.editor.Snapshot().ID == "" {
		if _, err := sess.editor.SetField("id", saved.ID); err != nil {
			log.Printf("app: session %s: adopt id %s: %v", sess.ID, saved.ID, err)
		}
	}
	sess.autosave.MarkSaved(saved)
}

// ownerID names the folder uploads go to before the report has an id.
func (sess *EditSession) ownerID() string {
	if id := sess.editor.Snapshot().ID; id != "" {
		return id
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.assignedID != "" {
		return sess.assignedID
	}
	return sess.ID
}

// teardown cancels a scheduled import and runs the final flush.
func (sess *EditSession) teardown(ctx context.Context) error {
	sess.draft.Stop()
	if err := sess.autosave.Close(ctx); err != nil {
		return err
	}
	log.Printf("app: session %s closed", sess.ID)
	return nil
}
