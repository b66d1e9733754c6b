package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"qservice/api/internal/report"
)

const (
	ReportsKey = "qservice_reports_prod"
	DevicesKey = "qservice_devices"
)

// Blob is a whole collection stored under one key. Saves overwrite the
// previous content; there are no partial writes.
type Blob[T any] struct {
	backend Backend
	key     string
}

func NewBlob[T any](backend Backend, key string) *Blob[T] {
	return &Blob[T]{backend: backend, key: key}
}

// Load returns the last saved collection. A missing, unreadable or corrupt
// blob yields an empty collection; the failure is only logged.
func (b *Blob[T]) Load(ctx context.Context) []T {
	data, err := b.backend.Read(ctx, b.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("localstore: load %s: %v", b.key, err)
		}
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("localstore: discard unreadable %s: %v", b.key, err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func (b *Blob[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.key, err)
	}
	return b.backend.Write(ctx, b.key, data)
}

func (b *Blob[T]) Ping(ctx context.Context) error {
	return b.backend.Ping(ctx)
}

// Reports is the case collection store.
type Reports = Blob[report.Report]

func NewReports(backend Backend) *Reports {
	return NewBlob[report.Report](backend, ReportsKey)
}
