// Package media stores photos and source documents attached to cases.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var ErrNotFound = errors.New("object not found")

// Store keeps binary objects by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

const (
	KindImages   = "images"
	KindOriginal = "original"
)

var unsafeName = regexp.MustCompile(`[^\w.\-]+`)

// SafeName replaces everything outside [A-Za-z0-9_.-] with underscores.
func SafeName(name string) string {
	name = unsafeName.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// ObjectKey builds cases/<reportID>/<kind>/<timestamp>_<name>.
func ObjectKey(reportID, kind, filename string, now time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000000Z"))
	return fmt.Sprintf("cases/%s/%s/%s_%s", SafeName(reportID), kind, stamp, SafeName(filename))
}

// ValidKey rejects keys that could escape the store root.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
