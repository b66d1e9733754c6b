package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"qservice/api/internal/editor"
	"qservice/api/internal/extraction"
	"qservice/api/internal/media"
	"qservice/api/internal/report"
)

const (
	defaultImageDescription = "Anhang"
	defaultImageCategory    = "Sonstiges"
	importTimeout           = 2 * time.Minute
)

// Upload is one file received from the client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImageMeta places an uploaded image. RoomID wins over Category.
type ImageMeta struct {
	Description string
	RoomID      string
	Category    string
}

// RequestImport runs an extraction over pasted text and documents and keeps
// the preview for review. Nothing reaches the buffer until ConfirmImport.
func (sess *EditSession) RequestImport(ctx context.Context, text string, files []Upload) (extraction.Preview, error) {
	sess.draft.Stop()

	src := extraction.Source{Text: text}
	for _, f := range files {
		src.Files = append(src.Files, extraction.File{Name: f.Name, Data: f.Data})
	}

	sess.mu.Lock()
	sess.importRuns++
	sess.mu.Unlock()

	preview, err := sess.extract.Request(ctx, src)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.importRuns--
	if err != nil {
		if !errors.Is(err, extraction.ErrBusy) {
			sess.importErr = err.Error()
		}
		return extraction.Preview{}, err
	}
	sess.importErr = ""
	sess.preview = &preview
	sess.originals = files
	return preview, nil
}

// ScheduleImport starts an extraction of text once typing has paused. Blank
// text cancels a scheduled run.
func (sess *EditSession) ScheduleImport(text string) bool {
	if strings.TrimSpace(text) == "" {
		sess.draft.Stop()
		return false
	}
	sess.draft.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()
		if _, err := sess.RequestImport(ctx, text, nil); err != nil {
			log.Printf("app: session %s: scheduled import: %v", sess.ID, err)
		}
	})
	return true
}

// UpdatePreview replaces the preview with the user's corrections.
func (sess *EditSession) UpdatePreview(p extraction.Preview) (extraction.Preview, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.preview == nil {
		return extraction.Preview{}, errNoPreview
	}
	if p.Mode == "" {
		p.Mode = sess.preview.Mode
	}
	if p.Model == "" {
		p.Model = sess.preview.Model
	}
	sess.preview = &p
	return p, nil
}

// DiscardImport drops the preview and the documents it came from.
func (sess *EditSession) DiscardImport() {
	sess.draft.Stop()
	sess.mu.Lock()
	sess.preview = nil
	sess.originals = nil
	sess.importErr = ""
	sess.mu.Unlock()
}

// ConfirmImport merges the preview into the buffer and files the source
// documents under the report's originals.
func (sess *EditSession) ConfirmImport(ctx context.Context) (SessionState, error) {
	sess.mu.Lock()
	preview := sess.preview
	originals := sess.originals
	sess.mu.Unlock()
	if preview == nil {
		return SessionState{}, errNoPreview
	}

	if _, err := sess.editor.ApplyImport(preview.Import()); err != nil {
		return SessionState{}, err
	}

	for _, f := range originals {
		img := report.Image{
			Name:        f.Name,
			ContentType: f.ContentType,
			Category:    report.CategoryDocuments,
			Description: f.Name,
		}
		img.SetIncluded(false)
		key, url, err := sess.storeObject(ctx, media.KindOriginal, f)
		if err != nil {
			log.Printf("app: session %s: store original %s: %v", sess.ID, f.Name, err)
			img.UploadFailed = true
		}
		img.StorageKey, img.URL = key, url
		if _, err := sess.editor.AddImage(img); err != nil {
			return SessionState{}, err
		}
	}

	sess.mu.Lock()
	sess.preview = nil
	sess.originals = nil
	sess.view = viewEdit
	sess.mu.Unlock()
	return sess.State(), nil
}

// UploadImage stores the file and appends it to the buffer. A failed upload
// still adds the image, flagged so the client can offer a retry.
func (sess *EditSession) UploadImage(ctx context.Context, up Upload, meta ImageMeta) (SessionState, error) {
	roomID := strings.TrimSpace(meta.RoomID)
	if roomID != "" && !sessionHasRoom(sess.editor.Snapshot(), roomID) {
		return SessionState{}, fmt.Errorf("%w: room %s", editor.ErrItemNotFound, roomID)
	}

	img := report.Image{
		Name:        up.Name,
		ContentType: up.ContentType,
		Description: strings.TrimSpace(meta.Description),
		RoomID:      report.Text(roomID),
		Category:    strings.TrimSpace(meta.Category),
	}
	if img.Description == "" {
		img.Description = defaultImageDescription
	}
	if img.RoomID == "" && img.Category == "" {
		img.Category = defaultImageCategory
	}

	key, url, err := sess.storeObject(ctx, media.KindImages, up)
	if err != nil {
		log.Printf("app: session %s: upload %s: %v", sess.ID, up.Name, err)
		img.UploadFailed = true
	}
	img.StorageKey, img.URL = key, url
	return sess.Apply(func(e *editor.Editor) (report.Report, error) {
		return e.AddImage(img)
	})
}

// RemoveImage drops the image and releases its stored object.
func (sess *EditSession) RemoveImage(ctx context.Context, id string) (SessionState, error) {
	removed, _, err := sess.editor.RemoveImage(id)
	if err != nil {
		return SessionState{}, err
	}
	if removed.StorageKey != "" {
		if err := sess.svc.media.Remove(ctx, removed.StorageKey); err != nil {
			log.Printf("app: session %s: remove %s: %v", sess.ID, removed.StorageKey, err)
		}
	}
	return sess.State(), nil
}

func (sess *EditSession) storeObject(ctx context.Context, kind string, up Upload) (key, url string, err error) {
	key = media.ObjectKey(sess.ownerID(), kind, up.Name, sess.svc.now())
	if err := sess.svc.media.Put(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), up.ContentType); err != nil {
		return "", "", err
	}
	url, err = sess.svc.media.URL(ctx, key)
	if err != nil {
		return key, "", err
	}
	return key, url, nil
}

func sessionHasRoom(r report.Report, id string) bool {
	for _, room := range r.Rooms {
		if string(room.ID) == id {
			return true
		}
	}
	return false
}
