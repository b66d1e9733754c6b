package export

import (
	"html/template"
	"sort"
	"strings"
	"time"

	"qservice/api/internal/report"
)

const (
	companyName   = "Q-Service AG"
	companyStreet = "Kriesbachstrasse 30"
	companyCity   = "8600 Dübendorf"
	companyWeb    = "www.q-service.ch"
	footerLine    = "Q-Service AG | Kriesbachstrasse 30, 8600 Dübendorf | www.q-service.ch | +41 43 819 14 18"
)

// TemplateData holds data for report template rendering
type TemplateData struct {
	Company     []string
	Title       string
	Subtitle    string
	Project     string
	OrderNumber string
	GeneratedAt string
	Meta        []MetaRow
	Description string
	Cause       string
	CausePhotos []Photo
	Rooms       []RoomSection
	Plans       []Photo
	Summary     report.Summary
	TotalHours  string
	TotalKWh    string
	Footer      string
}

type MetaRow struct {
	Label string
	Value string
}

// Photo is one image slot. Src is empty when the image could not be loaded;
// Document marks attachments that are listed by name only.
type Photo struct {
	Src      template.URL
	Caption  string
	Document bool
}

type RoomSection struct {
	// Heading is set on the first room of each apartment/floor group.
	Heading     string
	Name        string
	Description string
	Photos      []Photo
}

// PhotoFunc resolves an image to something the template can embed.
type PhotoFunc func(img report.Image) Photo

// BuildTemplateData lays out the document sections for r.
func BuildTemplateData(r report.Report, cause string, now time.Time, photo PhotoFunc) TemplateData {
	if photo == nil {
		photo = linkPhoto
	}
	if strings.TrimSpace(cause) == "" {
		cause = r.Cause
	}

	data := TemplateData{
		Company:     []string{companyName, companyStreet, companyCity, companyWeb},
		Title:       documentTitle(r),
		Subtitle:    subtitle(r),
		OrderNumber: report.Clean(r.Billing.OrderNumber),
		GeneratedAt: now.Format("02.01.2006 15:04") + " Uhr",
		Meta:        metaRows(r),
		Description: report.Clean(r.Description),
		Cause:       report.Clean(cause),
		Footer:      footerLine,
	}
	if title := report.Clean(r.ProjectTitle); title != "" && !strings.HasPrefix(title, "TMP-") {
		data.Project = title
	}

	for _, img := range r.Images {
		if !img.Included() || img.RoomID != "" {
			continue
		}
		switch img.Category {
		case report.CategoryDamage:
			data.CausePhotos = append(data.CausePhotos, photo(img))
		case report.CategoryPlans:
			p := photo(img)
			if p.Caption == "" {
				p.Caption = img.Name
			}
			data.Plans = append(data.Plans, p)
		}
	}

	data.Rooms = roomSections(r, photo)

	data.Summary = report.Summarize(r.Equipment)
	data.TotalHours = formatHours(data.Summary.TotalHours)
	data.TotalKWh = report.FormatKWh(data.Summary.TotalKWh)
	return data
}

func documentTitle(r report.Report) string {
	switch report.Clean(r.DamageType) {
	case string(report.StatusLeakDetection):
		return "Leckortungsbericht"
	case string(report.StatusDrying):
		return "Trocknungsbericht"
	}
	return "Schadensbericht"
}

func subtitle(r report.Report) string {
	parts := []string{report.Clean(r.Street), report.Clean(r.Zip), report.Clean(r.City)}
	line := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if dt := report.Clean(r.DamageType); dt != "" {
		if line != "" {
			line += " - "
		}
		line += dt
	}
	return line
}

func metaRows(r report.Report) []MetaRow {
	var rows []MetaRow
	add := func(label, value string) {
		if v := report.Clean(value); v != "" {
			rows = append(rows, MetaRow{Label: label, Value: v})
		}
	}
	add("Projektnummer", r.Billing.Reference)
	add("Auftragsnummer", r.Billing.OrderNumber)
	add("Schaden-Nr", r.Billing.ExternalRef)
	add("Eingangsdatum", germanDate(r.Date))
	add("Strasse", r.Street)
	add("Ort", strings.TrimSpace(report.Clean(r.Zip)+" "+report.Clean(r.City)))

	details := []string{report.Clean(r.LocationDetails)}
	if len(r.Contacts) > 0 {
		details = append(details, report.Clean(r.Contacts[0].Apartment))
	}
	add("Lage / Details", joinNonEmpty(details, ", "))

	add("Sachbearbeiter", r.ClientSource)
	add("Auftraggeber", r.Client)
	add("Eigentümer", r.Billing.Owner)
	add("Bewirtschaftung", r.Billing.Company)
	add("Schadenart", r.DamageType)
	return rows
}

func roomSections(r report.Report, photo PhotoFunc) []RoomSection {
	rooms := append([]report.Room(nil), r.Rooms...)
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if x, y := strings.ToLower(a.Apartment), strings.ToLower(b.Apartment); x != y {
			return x < y
		}
		if x, y := strings.ToLower(a.Floor), strings.ToLower(b.Floor); x != y {
			return x < y
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	var (
		out       []RoomSection
		lastGroup string
		first     = true
	)
	for _, room := range rooms {
		var photos []Photo
		for _, img := range r.Images {
			if img.Included() && belongsToRoom(img, room) {
				photos = append(photos, photo(img))
			}
		}
		desc := report.Clean(room.Description)
		if len(photos) == 0 && desc == "" {
			continue
		}

		section := RoomSection{Name: room.Name, Description: desc, Photos: photos}
		group := room.Apartment + "\x00" + room.Floor
		if first || group != lastGroup {
			section.Heading = apartmentHeading(room.Apartment, room.Floor)
			lastGroup = group
			first = false
		}
		out = append(out, section)
	}
	return out
}

// belongsToRoom matches by room id, or by a category that names the room
// for images assigned before rooms had ids.
func belongsToRoom(img report.Image, room report.Room) bool {
	if img.RoomID != "" {
		return img.RoomID == room.ID
	}
	name := strings.ToLower(strings.TrimSpace(room.Name))
	return name != "" && strings.ToLower(strings.TrimSpace(img.Category)) == name
}

func apartmentHeading(apartment, floor string) string {
	apartment = strings.TrimSpace(apartment)
	floor = strings.TrimSpace(floor)
	display := apartment
	lower := strings.ToLower(apartment)
	if apartment != "" && !strings.Contains(lower, "wohnung") && !strings.Contains(lower, "whg") {
		display = "Whg. " + apartment
	}
	if floor != "" && display != "" && strings.Contains(strings.ToLower(display), strings.ToLower(floor)) {
		return display
	}
	return joinNonEmpty([]string{floor, display}, ", ")
}

func linkPhoto(img report.Image) Photo {
	p := Photo{Caption: report.Clean(img.Description)}
	if img.IsPDF() {
		p.Document = true
		p.Caption = img.Name
		return p
	}
	if strings.HasPrefix(img.URL, "data:image/") || strings.HasPrefix(img.URL, "https://") || strings.HasPrefix(img.URL, "http://") {
		p.Src = template.URL(img.URL)
	}
	return p
}

func germanDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02.01.2006")
		}
	}
	return s
}

func formatHours(v float64) string {
	s := strings.TrimRight(strings.TrimRight(report.FormatKWh(v), "0"), ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

func joinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
