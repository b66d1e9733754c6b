package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"qservice/api/internal/config"
	"qservice/api/internal/devices"
	"qservice/api/internal/export"
	"qservice/api/internal/extraction"
	"qservice/api/internal/history"
	"qservice/api/internal/media"
	"qservice/api/internal/report"
	"qservice/api/internal/search"
)

type caseRepository interface {
	List() []report.Report
	Get(id string) (report.Report, error)
	Save(ctx context.Context, in report.Report, silent bool) (report.Report, error)
	Pending() []string
	RetryPending(ctx context.Context) (int, error)
	Ping(ctx context.Context) map[string]error
}

type reportSearcher interface {
	Search(q search.Query) search.Response
}

type historyReader interface {
	History(id string, limit int) ([]history.Entry, error)
	Snapshot(id, hash string) (report.Report, history.Entry, error)
}

type exporter interface {
	Export(ctx context.Context, r report.Report, req export.Request) (*export.Result, error)
}

type deviceCatalog interface {
	List(query string) []devices.Device
	Save(ctx context.Context, d devices.Device) (devices.Device, error)
	Delete(ctx context.Context, id string) error
}

type extractor interface {
	Request(ctx context.Context, src extraction.Source) (extraction.Preview, error)
}

// Deps bundles the collaborators wired up in main. Generator is shared; each
// edit session gets its own extraction bridge on top of it, so one form's
// running import never blocks another's. A nil Generator means plain mode.
type Deps struct {
	Cases     caseRepository
	Search    reportSearcher
	History   historyReader
	Media     media.Store
	Export    exporter
	Devices   deviceCatalog
	Generator extraction.Generator
}

type Service struct {
	cfg          config.Config
	cases        caseRepository
	search       reportSearcher
	history      historyReader
	media        media.Store
	exporter     exporter
	devices      deviceCatalog
	newExtractor func() extractor
	now          func() time.Time

	sessionMu sync.Mutex
	sessions  map[string]*EditSession
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		cases:    deps.Cases,
		search:   deps.Search,
		history:  deps.History,
		media:    deps.Media,
		exporter: deps.Export,
		devices:  deps.Devices,
		newExtractor: func() extractor {
			return extraction.NewBridge(deps.Generator)
		},
		now:      time.Now,
		sessions: make(map[string]*EditSession),
	}
}

// Ping returns one entry per backing store; a nil value means healthy.
func (s *Service) Ping(ctx context.Context) map[string]error {
	return s.cases.Ping(ctx)
}

func (s *Service) SearchReports(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) GetReport(id string) (report.Report, error) {
	return s.cases.Get(id)
}

// CreateReport saves a report straight from the request body. A missing
// body yields the empty template.
func (s *Service) CreateReport(ctx context.Context, in *report.Report) (report.Report, error) {
	r := report.New(s.now())
	if in != nil {
		r = in.Clone()
		report.Normalize(&r)
	}
	return s.cases.Save(ctx, r, false)
}

type SyncStatus struct {
	Pending []string `json:"pending"`
	Retried int      `json:"retried"`
	Error   string   `json:"error,omitempty"`
}

func (s *Service) PendingSync() SyncStatus {
	return SyncStatus{Pending: s.cases.Pending()}
}

// RetrySync pushes every queued report to the remote table once more.
func (s *Service) RetrySync(ctx context.Context) SyncStatus {
	done, err := s.cases.RetryPending(ctx)
	status := SyncStatus{Pending: s.cases.Pending(), Retried: done}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func (s *Service) ExportReport(ctx context.Context, id string, req export.Request) (*export.Result, error) {
	r, err := s.cases.Get(id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, r, req)
}

func (s *Service) History(id string, limit int) ([]history.Entry, error) {
	if _, err := s.cases.Get(id); err != nil {
		return nil, err
	}
	return s.history.History(id, limit)
}

type HistorySnapshot struct {
	Entry  history.Entry `json:"entry"`
	Report report.Report `json:"report"`
}

func (s *Service) HistorySnapshot(id, hash string) (HistorySnapshot, error) {
	r, entry, err := s.history.Snapshot(id, hash)
	if err != nil {
		return HistorySnapshot{}, err
	}
	return HistorySnapshot{Entry: entry, Report: r}, nil
}

// Devices lists the catalog with the deployment state derived from the
// current reports.
func (s *Service) Devices(query string) []devices.Device {
	return devices.WithDeployment(s.devices.List(query), s.cases.List())
}

func (s *Service) SaveDevice(ctx context.Context, d devices.Device) (devices.Device, error) {
	return s.devices.Save(ctx, d)
}

func (s *Service) DeleteDevice(ctx context.Context, id string) error {
	return s.devices.Delete(ctx, id)
}

// OpenMedia streams a stored object. Only well-formed keys are served.
func (s *Service) OpenMedia(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !media.ValidKey(key) {
		return nil, "", errMediaNotFound
	}
	rc, contentType, err := s.media.Get(ctx, key)
	if errors.Is(err, media.ErrNotFound) {
		return nil, "", errMediaNotFound
	}
	return rc, contentType, err
}

// OpenSession starts editing the report with the given id, or a new report
// when id is empty.
func (s *Service) OpenSession(id string) (*EditSession, error) {
	var seed *report.Report
	if id = strings.TrimSpace(id); id != "" {
		r, err := s.cases.Get(id)
		if err != nil {
			return nil, err
		}
		seed = &r
	}
	sess := newEditSession(s, seed)

	s.sessionMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionMu.Unlock()
	log.Printf("app: session %s opened for %q", sess.ID, id)
	return sess, nil
}

func (s *Service) Session(sid string) (*EditSession, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, errSessionNotFound
	}
	return sess, nil
}

// CloseSession flushes pending changes and forgets the session.
func (s *Service) CloseSession(ctx context.Context, sid string) (SessionState, error) {
	s.sessionMu.Lock()
	sess, ok := s.sessions[sid]
	delete(s.sessions, sid)
	s.sessionMu.Unlock()
	if !ok {
		return SessionState{}, errSessionNotFound
	}
	err := sess.teardown(ctx)
	return sess.State(), err
}

// Close flushes every open session. It is called on shutdown.
func (s *Service) Close(ctx context.Context) error {
	s.sessionMu.Lock()
	open := make([]*EditSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.sessions = make(map[string]*EditSession)
	s.sessionMu.Unlock()

	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	var errs []error
	for _, sess := range open {
		if err := sess.teardown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportSession renders the unsaved buffer of an open session.
func (s *Service) ExportSession(ctx context.Context, sid string, req export.Request) (*export.Result, error) {
	sess, err := s.Session(sid)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, sess.editor.Snapshot(), req)
}

// Authorized reports whether token grants access. Without a configured
// token every request is allowed.
func (s *Service) Authorized(token string) bool {
	if s.cfg.APIToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) == 1
}

func (s *Service) MaxUploadBytes() int64 {
	if s.cfg.MaxUploadBytes <= 0 {
		return 25 << 20
	}
	return s.cfg.MaxUploadBytes
}
