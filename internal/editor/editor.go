// Package editor holds the edit buffer of a single report and every mutation
// the intake form can apply to it.
package editor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"qservice/api/internal/report"
	"qservice/api/internal/util"
)

type Option func(*Editor)

func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithIDs replaces the generator used for rooms, equipment and images.
func WithIDs(next func(prefix string) string) Option {
	return func(e *Editor) { e.newID = next }
}

// Editor serialises all mutations of one buffer. Every successful mutation
// is passed to the change hook as a copy.
type Editor struct {
	mu       sync.Mutex
	buf      report.Report
	onChange func(report.Report)
	now      func() time.Time
	newID    func(prefix string) string
}

// New seeds the buffer from an existing report, or from the empty template
// when seed is nil.
func New(seed *report.Report, opts ...Option) *Editor {
	e := &Editor{now: time.Now, newID: util.NewID}
	for _, opt := range opts {
		opt(e)
	}
	if seed == nil {
		e.buf = report.New(e.now())
		return e
	}
	buf := seed.Clone()
	if buf.Street == "" && buf.Zip == "" && buf.City == "" && buf.Address != "" {
		buf.Street, buf.Zip, buf.City = report.SplitAddress(buf.Address)
	}
	if buf.DamageType == "" {
		buf.DamageType = buf.Type
	}
	if buf.Status == "" {
		buf.Status = report.StatusIntake
	}
	if len(buf.Contacts) == 0 {
		buf.Contacts = make([]report.Contact, 4)
	}
	if buf.Rooms == nil {
		buf.Rooms = []report.Room{}
	}
	if buf.Equipment == nil {
		buf.Equipment = []report.Equipment{}
	}
	if buf.Images == nil {
		buf.Images = []report.Image{}
	}
	e.buf = buf
	return e
}

// OnChange installs the hook that receives every mutated buffer.
func (e *Editor) OnChange(fn func(report.Report)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

func (e *Editor) Snapshot() report.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Clone()
}

func (e *Editor) today() string {
	return report.Today(e.now())
}

// apply runs fn on a copy and only commits it when fn succeeds, so a
// rejected mutation never leaves a partial change behind.
func (e *Editor) apply(fn func(*report.Report) error) (report.Report, error) {
	e.mu.Lock()
	next := e.buf.Clone()
	if err := fn(&next); err != nil {
		e.mu.Unlock()
		return report.Report{}, err
	}
	e.buf = next
	snapshot := next.Clone()
	hook := e.onChange
	e.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	return snapshot, nil
}

func textField(r *report.Report, name string) (*string, bool) {
	switch name {
	case "projectTitle":
		return &r.ProjectTitle, true
	case "client":
		return &r.Client, true
	case "clientSource":
		return &r.ClientSource, true
	case "propertyType":
		return &r.PropertyType, true
	case "assignedTo":
		return &r.AssignedTo, true
	case "locationDetails":
		return &r.LocationDetails, true
	case "street":
		return &r.Street, true
	case "zip":
		return &r.Zip, true
	case "city":
		return &r.City, true
	case "damageType":
		return &r.DamageType, true
	case "description":
		return &r.Description, true
	case "notes":
		return &r.Notes, true
	case "cause":
		return &r.Cause, true
	case "date":
		return &r.Date, true
	case "dryingStarted":
		return &r.DryingStarted, true
	case "dryingEnded":
		return &r.DryingEnded, true
	}
	return nil, false
}

// SetField updates one scalar field by its JSON name.
func (e *Editor) SetField(name, value string) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		return setField(r, name, value)
	})
}

// SetFields applies several field updates atomically.
func (e *Editor) SetFields(values map[string]string) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		for name, value := range values {
			if err := setField(r, name, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func setField(r *report.Report, name, value string) error {
	switch name {
	case "id":
		value = strings.TrimSpace(value)
		if r.ID != "" && value != r.ID {
			return ErrImmutableID
		}
		r.ID = value
		return nil
	case "status":
		status := report.Status(value)
		if !status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, value)
		}
		r.Status = status
		return nil
	}
	field, ok := textField(r, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if report.IsPlaceholder(value) {
		value = ""
	}
	*field = value
	return nil
}

func (e *Editor) SetStatus(status report.Status) (report.Report, error) {
	return e.SetField("status", string(status))
}
