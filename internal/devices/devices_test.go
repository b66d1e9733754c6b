package devices

import (
	"context"
	"errors"
	"testing"

	"qservice/api/internal/localstore"
	"qservice/api/internal/report"
)

func openCatalog(t *testing.T) (*Catalog, *localstore.Blob[Device]) {
	t.Helper()
	backend, err := localstore.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	blob := localstore.NewBlob[Device](backend, localstore.DevicesKey)
	c, err := Open(context.Background(), blob)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return c, blob
}

func TestOpenSeedsEmptyInventory(t *testing.T) {
	c, blob := openCatalog(t)
	if got := c.List(""); len(got) != 2 || got[0].Model != "Trotec TTK 100" {
		t.Fatalf("unexpected seed %+v", got)
	}
	if stored := blob.Load(context.Background()); len(stored) != 2 {
		t.Fatalf("expected seed to be persisted, got %d", len(stored))
	}
}

func TestSaveCreateUpdateDelete(t *testing.T) {
	c, blob := openCatalog(t)
	ctx := context.Background()

	created, err := c.Save(ctx, Device{Number: " 7 ", Type: "HEPA-Filter", Model: "Trotec TAC V+", Status: StatusDefective})
	if err != nil {
		t.Fatalf("Save create failed: %v", err)
	}
	if created.ID == "" || created.Number != "7" || created.Status != StatusAvailable {
		t.Fatalf("unexpected created device %+v", created)
	}

	created.Status = StatusDefective
	updated, err := c.Save(ctx, created)
	if err != nil || updated.Status != StatusDefective {
		t.Fatalf("Save update failed: %+v %v", updated, err)
	}

	if got := c.List("hepa"); len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("expected search by type, got %+v", got)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if stored := blob.Load(ctx); len(stored) != 2 {
		t.Fatalf("expected delete to persist, got %d devices", len(stored))
	}
	if err := c.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveValidation(t *testing.T) {
	c, _ := openCatalog(t)
	ctx := context.Background()
	tests := []struct {
		name string
		dev  Device
		want error
	}{
		{"missing number", Device{Type: "Ventilator"}, ErrInvalid},
		{"missing type", Device{Number: "3"}, ErrInvalid},
		{"unknown type", Device{Number: "3", Type: "Staubsauger"}, ErrInvalid},
		{"unknown id", Device{ID: "nope", Number: "3", Type: "Ventilator"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Save(ctx, tt.dev); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWithDeployment(t *testing.T) {
	devices := []Device{
		{ID: "1", Number: "1", Status: StatusAvailable},
		{ID: "2", Number: "2", Status: StatusAvailable},
		{ID: "3", Number: "3", Status: StatusDefective},
		{ID: "4", Number: "4", Status: StatusAvailable},
	}
	reports := []report.Report{
		{Status: report.StatusDrying, Equipment: []report.Equipment{{DeviceNumber: "1"}, {DeviceNumber: "2", EndDate: "2026-03-08"}, {DeviceNumber: "3"}}},
		{Status: report.StatusClosed, Equipment: []report.Equipment{{DeviceNumber: "4"}}},
	}
	got := WithDeployment(devices, reports)
	want := []string{StatusDeployed, StatusAvailable, StatusDefective, StatusAvailable}
	for i, d := range got {
		if d.Status != want[i] {
			t.Errorf("device %s status = %q, want %q", d.Number, d.Status, want[i])
		}
	}
	if devices[0].Status != StatusAvailable {
		t.Fatal("input slice must not be modified")
	}
}
