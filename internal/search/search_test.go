package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qservice/api/internal/report"
)

func fixtureReports() []report.Report {
	return []report.Report{
		{ID: "P-1", ProjectTitle: "P-1", Client: "Avadis Anlagestiftung", Street: "Zollstrasse 42", Zip: "8005", City: "Zürich", Status: report.StatusDrying,
			Contacts: []report.Contact{{Name: "Anna Keller", Phone: "+41 79 123 45 67"}, {}}},
		{ID: "P-2", ProjectTitle: "P-2", Client: "Livit AG", Address: "Bahnhofstrasse 1, 8001 Zürich", Status: report.StatusIntake,
			Description: strings.Repeat("Wasser ", 40)},
		{ID: "P-3", ProjectTitle: "Dach", Client: "Privat", Address: "Seeweg 3, 8700 Küsnacht", Status: report.StatusDrying},
	}
}

func TestRecordFromReport(t *testing.T) {
	rec := RecordFromReport(fixtureReports()[0])
	if rec.Address != "Zollstrasse 42, 8005 Zürich" {
		t.Fatalf("expected joined address, got %q", rec.Address)
	}
	if rec.Contacts != "Anna Keller +41 79 123 45 67" {
		t.Fatalf("expected blank contacts skipped, got %q", rec.Contacts)
	}
	if rec.Status != "Trocknung" {
		t.Fatalf("unexpected status %q", rec.Status)
	}
}

func TestMemorySearch(t *testing.T) {
	mem := NewMemory(fixtureReports)

	tests := []struct {
		name  string
		query Query
		want  []string
		total int
	}{
		{name: "empty query lists all", query: Query{}, want: []string{"P-1", "P-2", "P-3"}, total: 3},
		{name: "matches client case insensitive", query: Query{Text: "livit"}, want: []string{"P-2"}, total: 1},
		{name: "all terms must match", query: Query{Text: "zürich anna"}, want: []string{"P-1"}, total: 1},
		{name: "status filter", query: Query{Status: "Trocknung"}, want: []string{"P-1", "P-3"}, total: 2},
		{name: "limit and offset", query: Query{Limit: 1, Offset: 1}, want: []string{"P-2"}, total: 3},
		{name: "offset past end", query: Query{Offset: 10}, want: nil, total: 3},
		{name: "no match", query: Query{Text: "basel"}, want: nil, total: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, total, err := mem.Search(tt.query)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			var ids []string
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") || total != tt.total {
				t.Fatalf("got %v (total %d), want %v (total %d)", ids, total, tt.want, tt.total)
			}
		})
	}
}

func TestMemorySnippetIsTruncated(t *testing.T) {
	results, _, _ := NewMemory(fixtureReports).Search(Query{Text: "P-2"})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if !strings.HasSuffix(results[0].Snippet, "…") || len([]rune(results[0].Snippet)) != snippetRunes+1 {
		t.Fatalf("unexpected snippet %q", results[0].Snippet)
	}
}

type fakeSearcher struct {
	searchFn func(q Query) ([]Result, int, error)
}

func (f fakeSearcher) Search(q Query) ([]Result, int, error) { return f.searchFn(q) }
func (f fakeSearcher) Healthy() bool                          { return true }

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, NewMemory(fixtureReports))
	resp := svc.Search(Query{Text: "dach"})
	if resp.Total != 1 || resp.Results[0].ID != "P-3" || resp.Query != "dach" {
		t.Fatalf("unexpected response %+v", resp)
	}

	// Indexing without Meilisearch is a no-op.
	svc.IndexReport(context.Background(), fixtureReports()[0])
	svc.Reindex(context.Background(), fixtureReports())
	svc.Close()
}

func TestServiceReturnsEmptyOnFallbackError(t *testing.T) {
	svc := NewService(nil, fakeSearcher{searchFn: func(Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}})
	resp := svc.Search(Query{Text: "x"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}
