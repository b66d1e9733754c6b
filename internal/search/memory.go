package search

import (
	"strings"
	"unicode/utf8"

	"qservice/api/internal/report"
)

const snippetRunes = 120

// Memory filters the current collection in process. It is always healthy
// and serves whenever Meilisearch is not configured or down.
type Memory struct {
	source func() []report.Report
}

// NewMemory searches over whatever source returns at query time.
func NewMemory(source func() []report.Report) *Memory {
	return &Memory{source: source}
}

func (m *Memory) Healthy() bool { return true }

// Search matches every whitespace separated term case-insensitively against
// the indexed fields. An empty query lists everything in collection order.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	var matched []Result
	for _, r := range m.source() {
		rec := RecordFromReport(r)
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		haystack := strings.ToLower(strings.Join([]string{
			rec.ID, rec.Title, rec.Client, rec.Address, rec.Contacts, rec.Description, rec.AssignedTo, rec.DamageType,
		}, "\n"))
		ok := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, rec.result(snippet(rec.Description)))
		}
	}

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	return string([]rune(s)[:snippetRunes]) + "…"
}
