package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var placeholders = map[string]struct{}{
	"string":    {},
	"unset":     {},
	"n/a":       {},
	"null":      {},
	"undefined": {},
	"unbekannt": {},
}

// IsPlaceholder reports whether s is a sentinel token rather than data.
func IsPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Clean trims s and maps placeholder tokens to "".
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if IsPlaceholder(s) {
		return ""
	}
	return s
}

// New returns the empty template used by the new-entry flow.
func New(now time.Time) Report {
	return Report{
		Status:    StatusIntake,
		Date:      Today(now),
		Contacts:  make([]Contact, 4),
		Rooms:     []Room{},
		Equipment: []Equipment{},
		Images:    []Image{},
	}
}

// Scrub removes placeholder tokens from every text field.
func Scrub(r *Report) {
	for _, f := range []*string{
		&r.ProjectTitle, &r.Client, &r.ClientSource, &r.PropertyType, &r.AssignedTo,
		&r.LocationDetails, &r.Street, &r.Zip, &r.City, &r.Address, &r.DamageType,
		&r.Type, &r.Description, &r.Notes, &r.Cause,
		&r.Billing.Owner, &r.Billing.InvoiceEmail, &r.Billing.Reference, &r.Billing.OrderNumber,
		&r.Billing.ExternalRef, &r.Billing.Company, &r.Billing.Manager, &r.Billing.ServiceType,
	} {
		*f = Clean(*f)
	}
	for i := range r.Contacts {
		c := &r.Contacts[i]
		c.Name = Clean(c.Name)
		c.Phone = Clean(c.Phone)
		c.Apartment = Clean(c.Apartment)
		if IsPlaceholder(string(c.Role)) {
			c.Role = ""
		}
	}
	for i := range r.Rooms {
		r.Rooms[i].Name = Clean(r.Rooms[i].Name)
		r.Rooms[i].Apartment = Clean(r.Rooms[i].Apartment)
		r.Rooms[i].Floor = Clean(r.Rooms[i].Floor)
		r.Rooms[i].Description = Clean(r.Rooms[i].Description)
	}
	for i := range r.Equipment {
		e := &r.Equipment[i]
		e.DeviceNumber = Clean(e.DeviceNumber)
		e.Apartment = Clean(e.Apartment)
		e.Room = Clean(e.Room)
		e.CounterStart = Text(Clean(string(e.CounterStart)))
		e.CounterEnd = Text(Clean(string(e.CounterEnd)))
		e.Hours = Text(Clean(string(e.Hours)))
	}
	for i := range r.Images {
		r.Images[i].Description = Clean(r.Images[i].Description)
		r.Images[i].Category = Clean(r.Images[i].Category)
	}
}

// JoinAddress builds the display line "<street>, <zip> <city>".
func JoinAddress(street, zip, city string) string {
	street, zip, city = strings.TrimSpace(street), strings.TrimSpace(zip), strings.TrimSpace(city)
	place := strings.TrimSpace(zip + " " + city)
	switch {
	case street == "":
		return place
	case place == "":
		return street
	}
	return street + ", " + place
}

var zipPattern = regexp.MustCompile(`\b\d{4,5}\b`)

// SplitAddress recovers street, zip and city from a display line. A report
// stored with only the combined address is split this way when it is
// reopened for editing.
func SplitAddress(addr string) (street, zip, city string) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", "", ""
	}
	loc := zipPattern.FindStringIndex(addr)
	if loc == nil {
		return addr, "", ""
	}
	zip = addr[loc[0]:loc[1]]
	street = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(addr[:loc[0]]), ","))
	city = strings.TrimSpace(addr[loc[1]:])
	return street, zip, city
}

// Normalize prepares a buffer for an explicit submit.
func Normalize(r *Report) {
	Scrub(r)
	if r.Street != "" || r.Zip != "" || r.City != "" {
		r.Address = JoinAddress(r.Street, r.Zip, r.City)
	}
	r.Type = r.DamageType
	r.ImageCount = len(r.Images)
	if r.Status == "" {
		r.Status = StatusIntake
	}
}

// AssignID keeps an existing id, else uses the project title, else a
// generated TMP token.
func AssignID(r *Report, now time.Time) {
	if strings.TrimSpace(r.ID) != "" {
		return
	}
	if title := strings.TrimSpace(r.ProjectTitle); title != "" {
		r.ID = title
		return
	}
	r.ID = fmt.Sprintf("TMP-%d", now.UnixMilli())
}

// Import is what a confirmed extraction contributes to the buffer.
type Import struct {
	ProjectTitle    string    `json:"projectTitle"`
	Client          string    `json:"client"`
	Street          string    `json:"street"`
	Zip             string    `json:"zip"`
	City            string    `json:"city"`
	LocationDetails string    `json:"locationDetails"`
	Description     string    `json:"description"`
	DamageType      string    `json:"damageType"`
	Contacts        []Contact `json:"contacts"`
	Billing         Billing   `json:"billing"`
	Gaps            []string  `json:"gaps,omitempty"`
}
