package extraction

import (
	"encoding/json"
	"errors"
	"strings"

	"qservice/api/internal/report"
)

type ProjectData struct {
	InternalID  report.Text `json:"interne_id"`
	ExternalRef report.Text `json:"externe_ref"`
	OrderNumber report.Text `json:"auftrags_nr"`
}

type Assignment struct {
	Company     report.Text `json:"firma"`
	Manager     report.Text `json:"sachbearbeiter"`
	ServiceType report.Text `json:"leistungsart"`
}

type BillingDetails struct {
	Owner        report.Text `json:"eigentuemer"`
	InvoiceEmail report.Text `json:"email_rechnung"`
	Note         report.Text `json:"vermerk"`
}

type DamageSite struct {
	Street    report.Text `json:"strasse_nr"`
	ZipCity   report.Text `json:"plz_ort"`
	Apartment report.Text `json:"etage_wohnung"`
}

type ExtractedContact struct {
	Name  report.Text `json:"name"`
	Role  report.Text `json:"rolle"`
	Phone report.Text `json:"telefon"`
}

// Extraction is the model answer in the shape the preview grid edits.
type Extraction struct {
	Project    ProjectData        `json:"projekt_daten"`
	Assignment Assignment         `json:"auftrag_verwaltung"`
	Billing    BillingDetails     `json:"rechnungs_details"`
	Site       DamageSite         `json:"schadenort"`
	Contacts   []ExtractedContact `json:"kontakte"`
	Gaps       []string           `json:"gap_analysis"`
}

// Empty is the extraction used when the answer cannot be read at all.
func Empty() Extraction {
	return Extraction{Contacts: []ExtractedContact{}, Gaps: []string{}}
}

// Decode reads a model answer. Markdown fences are stripped. A top level
// that is not a JSON object yields *DecodeError; a group with an unexpected
// shape degrades to its zero value without failing the rest.
func Decode(raw string) (Extraction, error) {
	text := stripFences(raw)
	var groups map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &groups); err != nil {
		return Empty(), &DecodeError{Raw: raw, Err: err}
	}
	if groups == nil {
		return Empty(), &DecodeError{Raw: raw, Err: errors.New("answer is not an object")}
	}

	out := Empty()
	decodeGroup(groups["projekt_daten"], &out.Project)
	decodeGroup(groups["auftrag_verwaltung"], &out.Assignment)
	decodeGroup(groups["rechnungs_details"], &out.Billing)
	decodeGroup(groups["schadenort"], &out.Site)

	var contacts []json.RawMessage
	decodeGroup(groups["kontakte"], &contacts)
	for _, item := range contacts {
		var c ExtractedContact
		if err := json.Unmarshal(item, &c); err == nil {
			out.Contacts = append(out.Contacts, c)
		}
	}

	var gaps []json.RawMessage
	decodeGroup(groups["gap_analysis"], &gaps)
	for _, item := range gaps {
		var gap string
		if err := json.Unmarshal(item, &gap); err == nil && strings.TrimSpace(gap) != "" {
			out.Gaps = append(out.Gaps, gap)
		}
	}
	return out, nil
}

func decodeGroup[T any](raw json.RawMessage, target *T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*target = v
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
