package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qservice/api/internal/cases"
	"qservice/api/internal/devices"
	"qservice/api/internal/editor"
	"qservice/api/internal/export"
	"qservice/api/internal/extraction"
	"qservice/api/internal/history"
	"qservice/api/internal/report"
	"qservice/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{}
		for name, err := range s.service.Ping(ctx) {
			if err == nil {
				checks[name] = map[string]any{"status": "ok"}
				continue
			}
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if !s.service.Authorized(bearerToken(r)) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "reports":
		s.handleReports(w, r, parts)
		return
	case "sessions":
		s.handleSessions(w, r, parts)
		return
	case "devices":
		s.handleDevices(w, r, parts)
		return
	case "media":
		if r.Method == http.MethodGet && len(parts) > 2 {
			s.handleMedia(w, r, strings.Join(parts[2:], "/"))
			return
		}
	case "sync":
		if r.Method == http.MethodGet && len(parts) == 2 {
			writeJSON(w, http.StatusOK, s.service.PendingSync())
			return
		}
		if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "retry" {
			writeJSON(w, http.StatusOK, s.service.RetrySync(r.Context()))
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReports(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		writeJSON(w, http.StatusOK, s.service.SearchReports(search.Query{
			Text:   strings.TrimSpace(query.Get("q")),
			Status: strings.TrimSpace(query.Get("status")),
			Limit:  limit,
			Offset: offset,
		}))
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var in *report.Report
		if r.ContentLength != 0 {
			in = &report.Report{}
			if err := decodeBody(r, in); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
		}
		saved, err := s.service.CreateReport(r.Context(), in)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"report": saved})
		return
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	reportID := parts[2]

	if len(parts) == 3 && r.Method == http.MethodGet {
		rep, err := s.service.GetReport(reportID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": rep})
		return
	}

	if len(parts) == 4 && parts[3] == "edit" && r.Method == http.MethodPost {
		sess, err := s.service.OpenSession(reportID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, sess.State())
		return
	}

	if len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodPost {
		req, err := decodeExportRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.ExportReport(r.Context(), reportID, req)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeFile(w, result)
		return
	}

	if len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := s.service.History(reportID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}

	if len(parts) == 5 && parts[3] == "history" && r.Method == http.MethodGet {
		snapshot, err := s.service.HistorySnapshot(reportID, parts[4])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodPost {
		sess, err := s.service.OpenSession("")
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, sess.State())
		return
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	sessionID := parts[2]

	if len(parts) == 3 && r.Method == http.MethodDelete {
		state, err := s.service.CloseSession(r.Context(), sessionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}

	sess, err := s.service.Session(sessionID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, sess.State())
			return
		case http.MethodPatch:
			var body map[string]string
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
				return e.SetFields(body)
			}))
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[3] {
	case "contacts":
		s.handleContacts(w, r, sess, parts)
		return
	case "rooms":
		s.handleRooms(w, r, sess, parts)
		return
	case "equipment":
		s.handleEquipment(w, r, sess, parts)
		return
	case "images":
		s.handleImages(w, r, sess, parts)
		return
	case "import":
		s.handleImport(w, r, sess, parts)
		return
	}

	if len(parts) == 5 && parts[3] == "drying" && r.Method == http.MethodPost {
		switch parts[4] {
		case "start":
			s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
				return e.StartDrying()
			}))
			return
		case "end":
			s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
				return e.EndDrying()
			}))
			return
		}
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		switch parts[3] {
		case "submit":
			s.respondState(w, http.StatusOK)(sess.Submit(r.Context()))
			return
		case "close", "reactivate":
			var body struct {
				Confirm bool `json:"confirm"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if parts[3] == "close" {
				s.respondState(w, http.StatusOK)(sess.CloseProject(r.Context(), body.Confirm))
				return
			}
			s.respondState(w, http.StatusOK)(sess.Reactivate(r.Context(), body.Confirm))
			return
		case "export":
			req, err := decodeExportRequest(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.ExportSession(r.Context(), sessionID, req)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeFile(w, result)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleContacts(w http.ResponseWriter, r *http.Request, sess *EditSession, parts []string) {
	if len(parts) == 4 && r.Method == http.MethodPost {
		var body report.Contact
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusCreated)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.AddContact(body)
		}))
		return
	}
	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	index, err := strconv.Atoi(parts[4])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INDEX", "contact index must be a number", nil)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body report.Contact
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.UpdateContact(index, body)
		}))
		return
	case http.MethodDelete:
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.RemoveContact(index)
		}))
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request, sess *EditSession, parts []string) {
	if len(parts) == 4 && r.Method == http.MethodPost {
		var body report.Room
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusCreated)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.AddRoom(body)
		}))
		return
	}
	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	roomID := parts[4]
	switch r.Method {
	case http.MethodPut:
		var body report.Room
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.UpdateRoom(roomID, body)
		}))
		return
	case http.MethodDelete:
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.RemoveRoom(roomID)
		}))
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleEquipment(w http.ResponseWriter, r *http.Request, sess *EditSession, parts []string) {
	if len(parts) == 4 && r.Method == http.MethodPost {
		var body report.Equipment
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusCreated)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.AddEquipment(body)
		}))
		return
	}
	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	itemID := parts[4]
	switch r.Method {
	case http.MethodPut:
		var body report.Equipment
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.UpdateEquipment(itemID, body)
		}))
		return
	case http.MethodDelete:
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.RemoveEquipment(itemID)
		}))
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleImages(w http.ResponseWriter, r *http.Request, sess *EditSession, parts []string) {
	if len(parts) == 4 && r.Method == http.MethodPost {
		form, err := s.parseMultipart(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error(), nil)
			return
		}
		uploads, err := readUploads(form, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error(), nil)
			return
		}
		if len(uploads) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one file is required", nil)
			return
		}
		meta := ImageMeta{
			Description: formValue(form, "description"),
			RoomID:      formValue(form, "roomId"),
			Category:    formValue(form, "category"),
		}
		var state SessionState
		for _, up := range uploads {
			state, err = sess.UploadImage(r.Context(), up, meta)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
		}
		writeJSON(w, http.StatusCreated, state)
		return
	}
	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	imageID := parts[4]
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var body editor.ImageUpdate
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondState(w, http.StatusOK)(sess.Apply(func(e *editor.Editor) (report.Report, error) {
			return e.UpdateImage(imageID, body)
		}))
		return
	case http.MethodDelete:
		s.respondState(w, http.StatusOK)(sess.RemoveImage(r.Context(), imageID))
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request, sess *EditSession, parts []string) {
	if len(parts) == 4 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, sess.State().Import)
			return
		case http.MethodPost:
			text, uploads, err := s.readImportSource(w, r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			preview, err := sess.RequestImport(r.Context(), text, uploads)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"preview": preview})
			return
		case http.MethodPut:
			var body extraction.Preview
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			preview, err := sess.UpdatePreview(body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"preview": preview})
			return
		case http.MethodDelete:
			sess.DiscardImport()
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if len(parts) == 5 && parts[4] == "confirm" && r.Method == http.MethodPost {
		s.respondState(w, http.StatusOK)(sess.ConfirmImport(r.Context()))
		return
	}

	if len(parts) == 5 && parts[4] == "draft" && r.Method == http.MethodPost {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"scheduled": sess.ScheduleImport(body.Text)})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"devices": s.service.Devices(r.URL.Query().Get("q"))})
			return
		case http.MethodPost:
			s.saveDevice(w, r, "")
			return
		}
	}
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodPut:
			s.saveDevice(w, r, parts[2])
			return
		case http.MethodDelete:
			if err := s.service.DeleteDevice(r.Context(), parts[2]); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) saveDevice(w http.ResponseWriter, r *http.Request, id string) {
	var body devices.Device
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	status := http.StatusCreated
	if id != "" {
		body.ID = id
		status = http.StatusOK
	}
	saved, err := s.service.SaveDevice(r.Context(), body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, status, map[string]any{"device": saved})
}

func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, key string) {
	body, contentType, err := s.service.OpenMedia(r.Context(), key)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("app: stream %s: %v", key, err)
	}
}

// respondState adapts a (SessionState, error) pair to a response.
func (s *HTTPServer) respondState(w http.ResponseWriter, okStatus int) func(SessionState, error) {
	return func(state SessionState, err error) {
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, okStatus, state)
	}
}

func (s *HTTPServer) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	limit := s.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	return r.MultipartForm, nil
}

// readImportSource accepts either {"text": ...} or a multipart form with a
// text field and any number of files.
func (s *HTTPServer) readImportSource(w http.ResponseWriter, r *http.Request) (string, []Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			return "", nil, err
		}
		return body.Text, nil, nil
	}
	form, err := s.parseMultipart(w, r)
	if err != nil {
		return "", nil, err
	}
	uploads, err := readUploads(form, "files")
	if err != nil {
		return "", nil, err
	}
	return formValue(form, "text"), uploads, nil
}

func readUploads(form *multipart.Form, field string) ([]Upload, error) {
	var out []Upload
	for _, header := range form.File[field] {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Filename, err)
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		out = append(out, Upload{Name: header.Filename, ContentType: contentType, Data: data})
	}
	return out, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func decodeExportRequest(r *http.Request) (export.Request, error) {
	var body struct {
		Format string `json:"format"`
		Cause  string `json:"cause"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			return export.Request{}, err
		}
	}
	return export.Request{
		Format: export.Format(strings.ToLower(strings.TrimSpace(body.Format))),
		Cause:  body.Cause,
	}, nil
}

func writeFile(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		log.Printf("app: write %s: %v", result.Filename, err)
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var remoteErr *cases.RemoteWriteError
	if errors.As(err, &remoteErr) {
		return http.StatusBadGateway, "REMOTE_WRITE_FAILED", "Saved locally, but the remote copy could not be updated", map[string]any{
			"id":           remoteErr.ID,
			"savedLocally": true,
		}
	}

	var incomplete *editor.IncompleteEquipmentError
	if errors.As(err, &incomplete) {
		return http.StatusUnprocessableEntity, "EQUIPMENT_INCOMPLETE", incomplete.Error(), map[string]any{"devices": incomplete.Devices}
	}

	var apiErr *extraction.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, "EXTRACTION_FAILED", apiErr.Error(), map[string]any{"status": apiErr.Status}
	}

	switch {
	case errors.Is(err, cases.ErrNotFound), errors.Is(err, history.ErrNoHistory), errors.Is(err, devices.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, editor.ErrItemNotFound):
		return http.StatusNotFound, "ITEM_NOT_FOUND", err.Error(), nil
	case errors.Is(err, editor.ErrUnknownField), errors.Is(err, editor.ErrInvalidStatus),
		errors.Is(err, editor.ErrMissingValue), errors.Is(err, devices.ErrInvalid):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, editor.ErrImmutableID):
		return http.StatusConflict, "ID_IMMUTABLE", err.Error(), nil
	case errors.Is(err, editor.ErrConfirmationRequired):
		return http.StatusConflict, "CONFIRMATION_REQUIRED", "This action must be confirmed", nil
	case errors.Is(err, extraction.ErrBusy):
		return http.StatusConflict, "EXTRACTION_BUSY", err.Error(), nil
	case errors.Is(err, extraction.ErrNoText):
		return http.StatusUnprocessableEntity, "NO_TEXT", err.Error(), nil
	case errors.Is(err, extraction.ErrQuotaExhausted):
		return http.StatusTooManyRequests, "QUOTA_EXHAUSTED", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "The operation timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
