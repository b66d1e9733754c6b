// Package extraction turns pasted text and uploaded documents into a
// structured preview with the help of a hosted language model. The preview
// is editable and only reaches the report after the user confirms it.
package extraction

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"qservice/api/internal/report"
)

// FallbackModels are tried when model discovery fails.
var FallbackModels = []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-1.5-flash-8b"}

var apiVersions = []string{"v1beta", "v1"}

const maxModels = 6

// Generator is the model provider.
type Generator interface {
	ListModels(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, model, version, instruction, text string) (string, error)
}

const (
	ModeAI    = "ai"
	ModePlain = "plain"
)

// Preview is what the user reviews and corrects before confirming.
type Preview struct {
	Mode        string     `json:"mode"`
	Model       string     `json:"model,omitempty"`
	Extraction  Extraction `json:"extraction"`
	Description string     `json:"description,omitempty"`
	DecodeError string     `json:"decodeError,omitempty"`
}

// Import maps the (possibly corrected) preview onto report fields.
func (p Preview) Import() report.Import {
	imp := Map(p.Extraction)
	if d := strings.TrimSpace(p.Description); d != "" {
		imp.Description = d
	}
	return imp
}

type Bridge struct {
	gen  Generator
	busy atomic.Bool
}

// NewBridge returns a bridge. Without a generator it runs in plain mode and
// copies the text into the description only.
func NewBridge(gen Generator) *Bridge {
	return &Bridge{gen: gen}
}

func (b *Bridge) Busy() bool { return b.busy.Load() }

// Request runs one extraction. A second request while one is running gets
// ErrBusy instead of waiting.
func (b *Bridge) Request(ctx context.Context, src Source) (Preview, error) {
	if !b.busy.CompareAndSwap(false, true) {
		return Preview{}, ErrBusy
	}
	defer b.busy.Store(false)

	text, err := src.Collect()
	if err != nil {
		return Preview{}, err
	}
	if text == "" {
		return Preview{}, ErrNoText
	}

	if b.gen == nil {
		return Preview{Mode: ModePlain, Extraction: Empty(), Description: text}, nil
	}

	answer, model, err := b.generate(ctx, text)
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{Mode: ModeAI, Model: model}
	extraction, err := Decode(answer)
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		log.Printf("extraction: unreadable answer from %s: %v", model, decodeErr)
		preview.DecodeError = decodeErr.Error()
	}
	preview.Extraction = extraction
	return preview, nil
}

// generate walks the candidate list. Rate limits and unknown models move on
// to the next candidate; any other failure stops immediately.
func (b *Bridge) generate(ctx context.Context, text string) (answer, model string, err error) {
	models, listErr := b.gen.ListModels(ctx)
	if listErr != nil || len(models) == 0 {
		if listErr != nil {
			log.Printf("extraction: model discovery failed, using fallback list: %v", listErr)
		}
		models = FallbackModels
	}
	if len(models) > maxModels {
		models = models[:maxModels]
	}

	var (
		lastErr     error
		rateLimited bool
	)
	for _, m := range models {
		for _, version := range apiVersions {
			out, err := b.gen.Generate(ctx, m, version, instruction, text)
			if err == nil {
				return out, m, nil
			}
			lastErr = err
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return "", "", err
			}
			switch apiErr.Kind {
			case KindRateLimited:
				rateLimited = true
				log.Printf("extraction: %s (%s) rate limited", m, version)
			case KindUnavailable:
				log.Printf("extraction: %s (%s) unavailable", m, version)
			default:
				return "", "", err
			}
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
		}
	}
	if rateLimited {
		return "", "", ErrQuotaExhausted
	}
	return "", "", lastErr
}
