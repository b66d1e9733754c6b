// Package devices manages the inventory of drying devices.
package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"qservice/api/internal/localstore"
	"qservice/api/internal/report"
	"qservice/api/internal/util"
)

const (
	StatusAvailable = "Verfügbar"
	StatusDeployed  = "Im Einsatz"
	StatusDefective = "Defekt"
)

// Types are the device kinds offered in the inventory form.
var Types = []string{
	"Kondenstrockner",
	"Adsorptionstrockner",
	"Seitenkanalverdichter",
	"HEPA-Filter",
	"Ventilator",
	"Infrarotplatte",
	"Estrich-Dämmschichttrocknung",
	"Sonstiges",
}

var (
	ErrNotFound = errors.New("device not found")
	ErrInvalid  = errors.New("device invalid")
)

type Device struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Type   string `json:"type"`
	Model  string `json:"model"`
	Status string `json:"status"`
}

func seed() []Device {
	return []Device{
		{ID: "1", Number: "1", Type: "Kondenstrockner", Model: "Trotec TTK 100", Status: StatusAvailable},
		{ID: "2", Number: "2", Type: "Seitenkanalverdichter", Model: "Trotec VE 4", Status: StatusAvailable},
	}
}

// Catalog is the device list kept in the local blob store.
type Catalog struct {
	mu      sync.Mutex
	store   *localstore.Blob[Device]
	devices []Device
}

// Open loads the inventory, seeding it when the store holds nothing.
func Open(ctx context.Context, store *localstore.Blob[Device]) (*Catalog, error) {
	c := &Catalog{store: store, devices: store.Load(ctx)}
	if len(c.devices) == 0 {
		c.devices = seed()
		if err := store.Save(ctx, c.devices); err != nil {
			return nil, fmt.Errorf("seed devices: %w", err)
		}
	}
	return c, nil
}

// List returns devices whose number, model or type contains query.
func (c *Catalog) List(query string) []Device {
	c.mu.Lock()
	defer c.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		if query == "" ||
			strings.Contains(strings.ToLower(d.Number), query) ||
			strings.Contains(strings.ToLower(d.Model), query) ||
			strings.Contains(strings.ToLower(d.Type), query) {
			out = append(out, d)
		}
	}
	return out
}

// Save creates d when it has no id and replaces the stored device otherwise.
// New devices always start as available.
func (c *Catalog) Save(ctx context.Context, d Device) (Device, error) {
	d.Number = strings.TrimSpace(d.Number)
	d.Type = strings.TrimSpace(d.Type)
	d.Model = strings.TrimSpace(d.Model)
	if d.Number == "" || d.Type == "" {
		return Device{}, fmt.Errorf("%w: number and type are required", ErrInvalid)
	}
	if !validType(d.Type) {
		return Device{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, d.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := append([]Device(nil), c.devices...)
	if d.ID == "" {
		d.ID = util.NewID("dev")
		d.Status = StatusAvailable
		next = append(next, d)
	} else {
		idx := c.indexOf(d.ID)
		if idx < 0 {
			return Device{}, ErrNotFound
		}
		if d.Status == "" {
			d.Status = next[idx].Status
		}
		next[idx] = d
	}

	if err := c.store.Save(ctx, next); err != nil {
		return Device{}, fmt.Errorf("save devices: %w", err)
	}
	c.devices = next
	return d, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	next := make([]Device, 0, len(c.devices)-1)
	next = append(next, c.devices[:idx]...)
	next = append(next, c.devices[idx+1:]...)
	if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save devices: %w", err)
	}
	c.devices = next
	return nil
}

// WithDeployment reports devices placed on an open case as deployed. The
// stored status is not changed; defective devices stay defective.
func WithDeployment(devices []Device, reports []report.Report) []Device {
	deployed := map[string]bool{}
	for _, r := range reports {
		if r.Status.Closed() {
			continue
		}
		for _, e := range r.Equipment {
			if strings.TrimSpace(e.EndDate) == "" {
				deployed[strings.TrimSpace(e.DeviceNumber)] = true
			}
		}
	}
	out := make([]Device, len(devices))
	for i, d := range devices {
		if deployed[d.Number] && d.Status != StatusDefective {
			d.Status = StatusDeployed
		}
		out[i] = d
	}
	return out
}

func (c *Catalog) indexOf(id string) int {
	for i, d := range c.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func validType(t string) bool {
	for _, known := range Types {
		if known == t {
			return true
		}
	}
	return false
}
