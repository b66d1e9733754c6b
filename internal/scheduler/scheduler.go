// Package scheduler runs the periodic background jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"qservice/api/internal/report"
)

const (
	RetrySpec   = "0 * * * * *"
	ReindexSpec = "0 */15 * * * *"

	jobTimeout = 30 * time.Second
)

// Cases is the part of the case repository the jobs need.
type Cases interface {
	List() []report.Report
	Pending() []string
	RetryPending(ctx context.Context) (int, error)
}

type Reindexer interface {
	Reindex(ctx context.Context, reports []report.Report)
}

type Scheduler struct {
	cron    *cron.Cron
	cases   Cases
	indexer Reindexer
}

// New registers the remote retry job and, when indexer is not nil, the
// search reindex job. Runs of the same job never overlap.
func New(cases Cases, indexer Reindexer) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		cases:   cases,
		indexer: indexer,
	}
	if _, err := s.cron.AddFunc(RetrySpec, s.retryPending); err != nil {
		return nil, fmt.Errorf("add retry job: %w", err)
	}
	if indexer != nil {
		if _, err := s.cron.AddFunc(ReindexSpec, s.reindex); err != nil {
			return nil, fmt.Errorf("add reindex job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("scheduler: started")
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Printf("scheduler: stop: %v", ctx.Err())
	}
}

func (s *Scheduler) retryPending() {
	pending := s.cases.Pending()
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	synced, err := s.cases.RetryPending(ctx)
	if err != nil {
		log.Printf("scheduler: retry remote writes: %d of %d synced: %v", synced, len(pending), err)
		return
	}
	log.Printf("scheduler: retry remote writes: %d synced", synced)
}

func (s *Scheduler) reindex() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.indexer.Reindex(ctx, s.cases.List())
}
