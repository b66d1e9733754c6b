package extraction

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const unsupportedMarker = "[[Unsupported File Type]]"

// File is an uploaded document whose text feeds the extraction.
type File struct {
	Name string
	Data []byte
}

// Source is either pasted text or a set of files.
type Source struct {
	Text  string
	Files []File
}

// Collect joins the pasted text and the text of every file.
func (s Source) Collect() (string, error) {
	var parts []string
	if t := strings.TrimSpace(s.Text); t != "" {
		parts = append(parts, t)
	}
	for _, f := range s.Files {
		text, err := FileText(f)
		if err != nil {
			return "", err
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// FileText extracts plain text from txt, pdf and Outlook msg files.
func FileText(f File) (string, error) {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".txt", ".eml":
		return string(f.Data), nil
	case ".pdf":
		return pdfText(f.Data)
	case ".msg":
		return msgText(f.Data), nil
	}
	return unsupportedMarker, nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}

var whitespace = regexp.MustCompile(`\s+`)

// msgText keeps the printable runs of an Outlook message. The compound file
// format is not parsed; the body text survives this filter well enough for
// the model. When the UTF-8 view yields almost nothing, the bytes are read
// as single-byte characters instead.
func msgText(data []byte) string {
	text := collapse(printableUTF8(data))
	if len(text) >= 50 {
		return text
	}
	return collapse(printableASCII(data))
}

func printableUTF8(data []byte) string {
	var b strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r >= 0x20 && r <= 0x7e, r >= 0xa0 && r <= 0xff:
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func printableASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, c := range data {
		if (c >= 0x20 && c <= 0x7e) || c == '\n' || c == '\r' || c == '\t' {
			out[i] = c
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
