package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"qservice/api/internal/media"
	"qservice/api/internal/report"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Service renders reports and keeps a copy of each artifact in the output dir.
type Service struct {
	images    ImageSource
	outputDir string
	timeout   time.Duration
	now       func() time.Time

	pdf  func(ctx context.Context, html, footer string, timeout time.Duration) ([]byte, error)
	docx func(ctx context.Context, html, title string) ([]byte, error)
}

type Option func(*Service)

// WithOutputDir makes every export also land in dir.
func WithOutputDir(dir string) Option {
	return func(s *Service) { s.outputDir = dir }
}

func WithChromeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new export service. images may be nil, in which case
// photos are linked by URL only.
func NewService(images ImageSource, opts ...Option) *Service {
	s := &Service{
		images:  images,
		timeout: 60 * time.Second,
		now:     time.Now,
		pdf:     renderPDF,
		docx:    renderDOCX,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Filename is Schadensbericht_<id>.<ext>, or _Neu for unsaved reports.
func Filename(r report.Report, format Format) string {
	id := r.ID
	if id == "" {
		id = "Neu"
	}
	return fmt.Sprintf("Schadensbericht_%s.%s", media.SafeName(id), format)
}

// HTML renders the report page with photos inlined.
func (s *Service) HTML(ctx context.Context, r report.Report, cause string) (string, error) {
	data := BuildTemplateData(r, cause, s.now(), inlinePhotos(ctx, s.images))
	html, err := RenderReportHTML(data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, r report.Report, req Request) (*Result, error) {
	var (
		data []byte
		mime string
		err  error
	)
	switch req.Format {
	case FormatPDF, "":
		req.Format = FormatPDF
		mime = mimePDF
		var html string
		if html, err = s.HTML(ctx, r, req.Cause); err != nil {
			return nil, err
		}
		data, err = s.pdf(ctx, html, footerLine, s.timeout)
	case FormatDOCX:
		mime = mimeDOCX
		var html string
		if html, err = s.HTML(ctx, r, req.Cause); err != nil {
			return nil, err
		}
		data, err = s.docx(ctx, html, documentTitle(r))
	case FormatXLSX:
		mime = mimeXLSX
		data, err = renderEquipmentLog(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Data: data, Filename: Filename(r, req.Format), MimeType: mime}
	if s.outputDir != "" {
		path, err := s.write(result)
		if err != nil {
			log.Printf("export: write %s: %v", result.Filename, err)
		} else {
			result.Path = path
		}
	}
	return result, nil
}

func (s *Service) write(result *Result) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.outputDir, result.Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, result.Data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
