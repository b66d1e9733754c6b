package editor

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"qservice/api/internal/report"
)

func newTestEditor(seed *report.Report) *Editor {
	n := 0
	return New(seed,
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }),
		WithIDs(func(prefix string) string {
			n++
			return fmt.Sprintf("%s-%d", prefix, n)
		}),
	)
}

func TestNewTemplate(t *testing.T) {
	e := newTestEditor(nil)
	r := e.Snapshot()
	if r.Status != report.StatusIntake {
		t.Fatalf("unexpected status %q", r.Status)
	}
	if len(r.Contacts) != 4 {
		t.Fatalf("expected four blank contact rows, got %d", len(r.Contacts))
	}
	if r.Date != "2026-03-14" {
		t.Fatalf("unexpected date %q", r.Date)
	}
}

func TestSeedSplitsStoredAddress(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1", Address: "Zollstrasse 42, 8005 Zürich", Type: "Rohrbruch"})
	r := e.Snapshot()
	if r.Street != "Zollstrasse 42" || r.Zip != "8005" || r.City != "Zürich" {
		t.Fatalf("unexpected address parts %q %q %q", r.Street, r.Zip, r.City)
	}
	if r.DamageType != "Rohrbruch" {
		t.Fatalf("expected damage type from alias, got %q", r.DamageType)
	}
}

func TestSetField(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1"})

	var changes int
	e.OnChange(func(report.Report) { changes++ })

	if _, err := e.SetField("client", "Avadis"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if _, err := e.SetField("bogus", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := e.SetField("id", "R2"); !errors.Is(err, ErrImmutableID) {
		t.Fatalf("expected ErrImmutableID, got %v", err)
	}
	if _, err := e.SetField("status", "Irgendwas"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := e.SetField("notes", "unset"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}

	r := e.Snapshot()
	if r.Client != "Avadis" || r.ID != "R1" || r.Notes != "" {
		t.Fatalf("unexpected buffer %+v", r)
	}
	if changes != 2 {
		t.Fatalf("expected 2 change notifications, got %d", changes)
	}
}

func TestEndDryingRejectsIncompleteEquipment(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1"})
	if _, err := e.AddEquipment(report.Equipment{DeviceNumber: "17", Room: "Bad", CounterStart: "100"}); err != nil {
		t.Fatalf("AddEquipment failed: %v", err)
	}
	if _, err := e.AddEquipment(report.Equipment{DeviceNumber: "23", Room: "Flur", CounterStart: "5", CounterEnd: "9", Hours: "48", EndDate: "2026-03-14"}); err != nil {
		t.Fatalf("AddEquipment failed: %v", err)
	}

	_, err := e.EndDrying()
	var incomplete *IncompleteEquipmentError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteEquipmentError, got %v", err)
	}
	if len(incomplete.Devices) != 1 || incomplete.Devices[0] != "17" {
		t.Fatalf("unexpected devices %v", incomplete.Devices)
	}
	if !strings.Contains(err.Error(), "#17") {
		t.Fatalf("message must name the device: %q", err.Error())
	}
	if e.Snapshot().DryingEnded != "" {
		t.Fatal("rejected end drying must not stamp a date")
	}

	id := string(e.Snapshot().Equipment[0].ID)
	if _, err := e.UpdateEquipment(id, report.Equipment{DeviceNumber: "17", Room: "Bad", CounterStart: "100", CounterEnd: "137.5", Hours: "72", EndDate: "2026-03-14"}); err != nil {
		t.Fatalf("UpdateEquipment failed: %v", err)
	}
	r, err := e.EndDrying()
	if err != nil {
		t.Fatalf("EndDrying failed: %v", err)
	}
	if r.DryingEnded != "2026-03-14" {
		t.Fatalf("unexpected drying end %q", r.DryingEnded)
	}
	if v, ok := r.Equipment[0].Consumption(); !ok || v != 37.5 {
		t.Fatalf("unexpected consumption %v %v", v, ok)
	}
}

func TestEndDryingWithoutEquipment(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1"})
	r, err := e.EndDrying()
	if err != nil {
		t.Fatalf("EndDrying failed: %v", err)
	}
	if r.DryingEnded != "2026-03-14" {
		t.Fatalf("unexpected drying end %q", r.DryingEnded)
	}
}

func TestStartDrying(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1", Status: report.StatusLeakDetection})
	r, err := e.StartDrying()
	if err != nil {
		t.Fatalf("StartDrying failed: %v", err)
	}
	if r.Status != report.StatusDrying || r.DryingStarted != "2026-03-14" {
		t.Fatalf("unexpected buffer %+v", r)
	}
}

func TestCloseAndReactivate(t *testing.T) {
	for _, start := range report.Stages {
		t.Run(string(start), func(t *testing.T) {
			e := newTestEditor(&report.Report{ID: "R1", Status: start})
			if _, err := e.CloseProject(false); !errors.Is(err, ErrConfirmationRequired) {
				t.Fatalf("expected confirmation error, got %v", err)
			}
			if e.Snapshot().Status != start {
				t.Fatal("unconfirmed close must not change status")
			}
			r, err := e.CloseProject(true)
			if err != nil || r.Status != report.StatusClosed {
				t.Fatalf("CloseProject = %q, %v", r.Status, err)
			}
			if _, err := e.Reactivate(false); !errors.Is(err, ErrConfirmationRequired) {
				t.Fatalf("expected confirmation error, got %v", err)
			}
			r, err = e.Reactivate(true)
			if err != nil || r.Status != report.StatusRemediation {
				t.Fatalf("Reactivate = %q, %v", r.Status, err)
			}
		})
	}
}

func TestSubmitNormalizes(t *testing.T) {
	e := newTestEditor(nil)
	if _, err := e.SetFields(map[string]string{
		"projectTitle": "P-2026-01-1000",
		"street":       "Zollstrasse 42",
		"zip":          "8005",
		"city":         "Zürich",
		"damageType":   "Wasserschaden",
	}); err != nil {
		t.Fatalf("SetFields failed: %v", err)
	}
	r, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.Address != "Zollstrasse 42, 8005 Zürich" || r.Type != "Wasserschaden" {
		t.Fatalf("unexpected buffer %+v", r)
	}
}

func TestImagesAndRooms(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1"})
	r, err := e.AddRoom(report.Room{Name: "Bad", Apartment: "EG"})
	if err != nil {
		t.Fatalf("AddRoom failed: %v", err)
	}
	roomID := string(r.Rooms[0].ID)

	if _, err := e.AddRoom(report.Room{Name: " "}); !errors.Is(err, ErrMissingValue) {
		t.Fatalf("expected ErrMissingValue, got %v", err)
	}

	r, err = e.AddImage(report.Image{Name: "a.jpg", RoomID: report.Text(roomID), Category: report.CategoryDamage})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	img := r.Images[0]
	if img.Category != "" || string(img.RoomID) != roomID {
		t.Fatalf("image must have a single grouping key: %+v", img)
	}

	category := report.CategoryPlans
	exclude := false
	r, err = e.UpdateImage(string(img.ID), ImageUpdate{Category: &category, Include: &exclude})
	if err != nil {
		t.Fatalf("UpdateImage failed: %v", err)
	}
	if r.Images[0].RoomID != "" || r.Images[0].Category != report.CategoryPlans || r.Images[0].Included() {
		t.Fatalf("unexpected image %+v", r.Images[0])
	}

	missing := "room-404"
	if _, err := e.UpdateImage(string(img.ID), ImageUpdate{RoomID: &missing}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	removed, r, err := e.RemoveImage(string(img.ID))
	if err != nil || removed.Name != "a.jpg" || len(r.Images) != 0 {
		t.Fatalf("RemoveImage = %+v, %d, %v", removed, len(r.Images), err)
	}

	if _, err := e.RemoveRoom(roomID); err != nil {
		t.Fatalf("RemoveRoom failed: %v", err)
	}
	if len(e.Snapshot().Rooms) != 0 {
		t.Fatal("room not removed")
	}
}

func TestContacts(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1"})
	r, err := e.UpdateContact(0, report.Contact{Name: "Anna", Role: "Hauswart"})
	if err != nil {
		t.Fatalf("UpdateContact failed: %v", err)
	}
	if r.Contacts[0].Role != report.RoleCaretaker {
		t.Fatalf("unexpected role %q", r.Contacts[0].Role)
	}
	if _, err := e.UpdateContact(9, report.Contact{}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	r, err = e.AddContact(report.Contact{Name: "Ben", Role: report.RoleResident})
	if err != nil || len(r.Contacts) != 5 {
		t.Fatalf("AddContact = %d, %v", len(r.Contacts), err)
	}
	r, err = e.RemoveContact(0)
	if err != nil || r.Contacts[0].Name != "" || len(r.Contacts) != 4 {
		t.Fatalf("RemoveContact = %+v, %v", r.Contacts, err)
	}
}

func TestApplyImport(t *testing.T) {
	e := newTestEditor(&report.Report{ID: "R1", Client: "Bestehend", Description: "alt"})
	r, err := e.ApplyImport(report.Import{
		Client:   "Avadis Anlagestiftung",
		Street:   "Zollstrasse 42",
		Zip:      "8005",
		City:     "Zürich",
		Contacts: []report.Contact{{Name: "Peter Halter", Role: "Handw.", Phone: "+41 44 123 45 67"}},
		Billing:  report.Billing{Owner: "Avadis Anlagestiftung", OrderNumber: "string"},
	})
	if err != nil {
		t.Fatalf("ApplyImport failed: %v", err)
	}
	if r.Client != "Avadis Anlagestiftung" || r.Description != "alt" {
		t.Fatalf("unexpected merge %+v", r)
	}
	if len(r.Contacts) != 4 || r.Contacts[0].Role != report.RoleContractor || !r.Contacts[1].Blank() {
		t.Fatalf("unexpected contacts %+v", r.Contacts)
	}
	if r.Billing.OrderNumber != "" {
		t.Fatalf("placeholder leaked into billing: %q", r.Billing.OrderNumber)
	}
}
