package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"qservice/api/internal/report"
)

const (
	maxPhotoEdge  = 1600
	maxPhotoBytes = 25 << 20
	jpegQuality   = 82
)

// ImageSource loads stored photo bytes by key.
type ImageSource interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// inlinePhotos returns a PhotoFunc that embeds stored photos as downscaled
// JPEG data URIs. Images without a storage key fall back to their URL.
func inlinePhotos(ctx context.Context, src ImageSource) PhotoFunc {
	return func(img report.Image) Photo {
		p := linkPhoto(img)
		if p.Document || src == nil || img.StorageKey == "" {
			return p
		}
		data, err := loadPhoto(ctx, src, img.StorageKey)
		if err != nil {
			log.Printf("export: load photo %s: %v", img.StorageKey, err)
			return p
		}
		p.Src = template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data))
		return p
	}
}

func loadPhoto(ctx context.Context, src ImageSource, key string) ([]byte, error) {
	rc, _, err := src.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return downscaleJPEG(raw, maxPhotoEdge)
}

func decodeImageWithWebPFallback(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}
	if decoded, webpErr := webp.Decode(bytes.NewReader(raw)); webpErr == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode photo: %w", err)
}

// downscaleJPEG fits the photo into maxEdge on its longer side and
// re-encodes it as JPEG.
func downscaleJPEG(raw []byte, maxEdge int) ([]byte, error) {
	img, err := decodeImageWithWebPFallback(raw)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = h * maxEdge / w
			w = maxEdge
		} else {
			w = w * maxEdge / h
			h = maxEdge
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		resized := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, xdraw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
