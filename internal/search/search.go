// Package search powers the case dashboard filter.
package search

import (
	"strings"

	"qservice/api/internal/report"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Client     string `json:"client"`
	Address    string `json:"address"`
	Status     string `json:"status"`
	AssignedTo string `json:"assignedTo"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Status string // empty = all stages
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ReportRecord is the data we index for a report.
type ReportRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Client      string `json:"client"`
	Address     string `json:"address"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assignedTo"`
	DamageType  string `json:"damageType"`
	Description string `json:"description"`
	Contacts    string `json:"contacts"`
	Date        string `json:"date"`
}

// RecordFromReport flattens the fields the dashboard filters on.
func RecordFromReport(r report.Report) ReportRecord {
	var contacts []string
	for _, c := range r.Contacts {
		if !c.Blank() {
			contacts = append(contacts, strings.TrimSpace(c.Name+" "+c.Phone))
		}
	}
	address := r.Address
	if address == "" {
		address = report.JoinAddress(r.Street, r.Zip, r.City)
	}
	return ReportRecord{
		ID:          r.ID,
		Title:       r.ProjectTitle,
		Client:      r.Client,
		Address:     address,
		Status:      string(r.Status),
		AssignedTo:  r.AssignedTo,
		DamageType:  r.DamageType,
		Description: r.Description,
		Contacts:    strings.Join(contacts, "; "),
		Date:        r.Date,
	}
}

func (rec ReportRecord) result(snippet string) Result {
	return Result{
		ID:         rec.ID,
		Title:      firstNonBlank(rec.Title, rec.ID),
		Snippet:    snippet,
		Client:     rec.Client,
		Address:    rec.Address,
		Status:     rec.Status,
		AssignedTo: rec.AssignedTo,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
