// Package report holds the damage-case model shared by the editor, the
// persistence layers and the document renderer.
package report

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Report is one water-damage case. The JSON layout is the persisted form
// for both the local blob and the remote report_data column.
type Report struct {
	ID              string      `json:"id"`
	ProjectTitle    string      `json:"projectTitle"`
	Client          string      `json:"client"`
	ClientSource    string      `json:"clientSource"`
	PropertyType    string      `json:"propertyType"`
	AssignedTo      string      `json:"assignedTo"`
	LocationDetails string      `json:"locationDetails"`
	Street          string      `json:"street"`
	Zip             string      `json:"zip"`
	City            string      `json:"city"`
	Address         string      `json:"address"`
	DamageType      string      `json:"damageType"`
	Type            string      `json:"type"`
	Description     string      `json:"description"`
	Notes           string      `json:"notes"`
	Cause           string      `json:"cause"`
	Status          Status      `json:"status"`
	Date            string      `json:"date"`
	DryingStarted   string      `json:"dryingStarted"`
	DryingEnded     string      `json:"dryingEnded"`
	Contacts        []Contact   `json:"contacts"`
	Rooms           []Room      `json:"rooms"`
	Equipment       []Equipment `json:"equipment"`
	Images          []Image     `json:"images"`
	Billing         Billing     `json:"billing"`
	ImageCount      int         `json:"imageCount"`
}

type Contact struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Apartment string `json:"apartment"`
	Phone     string `json:"phone"`
}

// Blank reports whether the row carries nothing a user typed.
func (c Contact) Blank() bool {
	return strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Phone) == "" && strings.TrimSpace(c.Apartment) == ""
}

type Room struct {
	ID          Text   `json:"id"`
	Name        string `json:"name"`
	Apartment   string `json:"apartment"`
	Floor       string `json:"floor"`
	Description string `json:"description"`
}

// Billing carries the owner and order data that arrives through the import
// flow. It is printed in the metadata block of the document.
type Billing struct {
	Owner        string `json:"owner"`
	InvoiceEmail string `json:"invoiceEmail"`
	Reference    string `json:"reference"`
	OrderNumber  string `json:"orderNumber"`
	ExternalRef  string `json:"externalRef"`
	Company      string `json:"company"`
	Manager      string `json:"manager"`
	ServiceType  string `json:"serviceType"`
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (r Report) Clone() Report {
	out := r
	out.Contacts = cloneSlice(r.Contacts)
	out.Rooms = cloneSlice(r.Rooms)
	out.Equipment = cloneSlice(r.Equipment)
	out.Images = cloneSlice(r.Images)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Fingerprint is the serialized form used for dirty checks.
func (r Report) Fingerprint() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}

// Equal compares two reports over their serialized form.
func Equal(a, b Report) bool {
	return bytes.Equal(a.Fingerprint(), b.Fingerprint())
}

// Text is a string that also accepts JSON numbers. Older records carry
// numeric identifiers and meter readings.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }

// Float parses the value, accepting a decimal comma.
func (t Text) Float() (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(string(t), ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
