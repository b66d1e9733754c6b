package search

import (
	"context"
	"log"

	"qservice/api/internal/report"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory filter.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to memory: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexReport pushes a saved report to Meilisearch without blocking the save.
func (s *Service) IndexReport(_ context.Context, r report.Report) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := RecordFromReport(r)
	go func() {
		if err := s.meili.IndexReports([]ReportRecord{rec}); err != nil {
			log.Printf("search: index report %s: %v", rec.ID, err)
		}
	}()
}

// Reindex pushes the whole collection. The scheduler calls it periodically
// so the index converges after Meilisearch outages.
func (s *Service) Reindex(_ context.Context, reports []report.Report) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := make([]ReportRecord, 0, len(reports))
	for _, r := range reports {
		records = append(records, RecordFromReport(r))
	}
	if err := s.meili.IndexReports(records); err != nil {
		log.Printf("search: reindex %d reports: %v", len(records), err)
	}
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
