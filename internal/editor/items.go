package editor

import (
	"fmt"
	"strings"
	"time"

	"qservice/api/internal/report"
)

func (e *Editor) AddContact(c report.Contact) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		c.Role = normalizeRole(c.Role)
		r.Contacts = append(r.Contacts, c)
		return nil
	})
}

func (e *Editor) UpdateContact(index int, c report.Contact) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		if index < 0 || index >= len(r.Contacts) {
			return fmt.Errorf("%w: contact %d", ErrItemNotFound, index)
		}
		c.Role = normalizeRole(c.Role)
		r.Contacts[index] = c
		return nil
	})
}

func (e *Editor) RemoveContact(index int) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		if index < 0 || index >= len(r.Contacts) {
			return fmt.Errorf("%w: contact %d", ErrItemNotFound, index)
		}
		r.Contacts = append(r.Contacts[:index], r.Contacts[index+1:]...)
		return nil
	})
}

func normalizeRole(role report.Role) report.Role {
	if role == "" {
		return ""
	}
	return report.ParseRole(string(role))
}

// AddRoom appends a room. A name is required.
func (e *Editor) AddRoom(room report.Room) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		room.Name = strings.TrimSpace(room.Name)
		if room.Name == "" {
			return fmt.Errorf("%w: room name", ErrMissingValue)
		}
		if room.ID == "" {
			room.ID = report.Text(e.newID("room"))
		}
		r.Rooms = append(r.Rooms, room)
		return nil
	})
}

func (e *Editor) UpdateRoom(id string, room report.Room) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		for i := range r.Rooms {
			if string(r.Rooms[i].ID) == id {
				room.ID = r.Rooms[i].ID
				r.Rooms[i] = room
				return nil
			}
		}
		return fmt.Errorf("%w: room %s", ErrItemNotFound, id)
	})
}

// RemoveRoom drops the room and releases the images grouped under it.
func (e *Editor) RemoveRoom(id string) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		idx := -1
		for i := range r.Rooms {
			if string(r.Rooms[i].ID) == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: room %s", ErrItemNotFound, id)
		}
		r.Rooms = append(r.Rooms[:idx], r.Rooms[idx+1:]...)
		for i := range r.Images {
			if string(r.Images[i].RoomID) == id {
				r.Images[i].RoomID = ""
			}
		}
		return nil
	})
}

// AddEquipment places a drying device. Device number and room are required;
// the start date defaults to today.
func (e *Editor) AddEquipment(item report.Equipment) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		item.DeviceNumber = strings.TrimSpace(item.DeviceNumber)
		if item.DeviceNumber == "" || strings.TrimSpace(item.Room) == "" {
			return fmt.Errorf("%w: device number and room", ErrMissingValue)
		}
		if item.ID == "" {
			item.ID = report.Text(e.newID("dev"))
		}
		if item.StartDate == "" {
			item.StartDate = e.today()
		}
		r.Equipment = append(r.Equipment, item)
		return nil
	})
}

// UpdateEquipment replaces every field of the entry except its id.
func (e *Editor) UpdateEquipment(id string, item report.Equipment) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		for i := range r.Equipment {
			if string(r.Equipment[i].ID) == id {
				item.ID = r.Equipment[i].ID
				r.Equipment[i] = item
				return nil
			}
		}
		return fmt.Errorf("%w: equipment %s", ErrItemNotFound, id)
	})
}

func (e *Editor) RemoveEquipment(id string) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		for i := range r.Equipment {
			if string(r.Equipment[i].ID) == id {
				r.Equipment = append(r.Equipment[:i], r.Equipment[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: equipment %s", ErrItemNotFound, id)
	})
}

// AddImage appends an image. A room assignment wins over a category.
func (e *Editor) AddImage(img report.Image) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		if img.ID == "" {
			img.ID = report.Text(e.newID("img"))
		}
		if img.Date == "" {
			img.Date = e.now().UTC().Format(time.RFC3339)
		}
		if img.RoomID != "" {
			if !hasRoom(r, string(img.RoomID)) {
				return fmt.Errorf("%w: room %s", ErrItemNotFound, img.RoomID)
			}
			img.AssignRoom(string(img.RoomID))
		} else {
			img.AssignCategory(img.Category)
		}
		r.Images = append(r.Images, img)
		return nil
	})
}

// ImageUpdate carries the editable image attributes. Nil fields are left
// untouched; setting RoomID or Category regroups the image.
type ImageUpdate struct {
	Description *string `json:"description"`
	Include     *bool   `json:"includeInReport"`
	RoomID      *string `json:"roomId"`
	Category    *string `json:"category"`
	URL         *string `json:"url"`
}

func (e *Editor) UpdateImage(id string, upd ImageUpdate) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		for i := range r.Images {
			img := &r.Images[i]
			if string(img.ID) != id {
				continue
			}
			if upd.Description != nil {
				img.Description = *upd.Description
			}
			if upd.Include != nil {
				img.SetIncluded(*upd.Include)
			}
			if upd.URL != nil {
				img.URL = *upd.URL
			}
			switch {
			case upd.RoomID != nil && *upd.RoomID != "":
				if !hasRoom(r, *upd.RoomID) {
					return fmt.Errorf("%w: room %s", ErrItemNotFound, *upd.RoomID)
				}
				img.AssignRoom(*upd.RoomID)
			case upd.Category != nil:
				img.AssignCategory(*upd.Category)
			}
			return nil
		}
		return fmt.Errorf("%w: image %s", ErrItemNotFound, id)
	})
}

// RemoveImage drops the image and returns it so the caller can release the
// stored object.
func (e *Editor) RemoveImage(id string) (report.Image, report.Report, error) {
	var removed report.Image
	snapshot, err := e.apply(func(r *report.Report) error {
		for i := range r.Images {
			if string(r.Images[i].ID) == id {
				removed = r.Images[i]
				r.Images = append(r.Images[:i], r.Images[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: image %s", ErrItemNotFound, id)
	})
	return removed, snapshot, err
}

func hasRoom(r *report.Report, id string) bool {
	for _, room := range r.Rooms {
		if string(room.ID) == id {
			return true
		}
	}
	return false
}
