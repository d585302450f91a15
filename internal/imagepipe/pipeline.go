// Package imagepipe classifies, validates, resizes, and transcodes
// uploaded or fetched images into a canonical stored form.
package imagepipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF format decoder
	_ "image/jpeg" // register JPEG format decoder
	_ "image/png"  // register PNG format decoder
	"strings"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"  // register BMP format decoder
	_ "golang.org/x/image/tiff" // register TIFF format decoder
	_ "golang.org/x/image/webp" // register WebP format decoder

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/blobstore"
)

var extForFormat = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
	"avif": ".avif",
}

// Pipeline ingests raw image bytes and persists the canonical result to
// the blob store. The policy is swappable at runtime (see WatchPolicy);
// each ingest reads it exactly once.
type Pipeline struct {
	blobs  blobstore.Provider
	policy atomic.Pointer[Policy]
}

// New creates a pipeline writing to blobs under the given policy.
func New(blobs blobstore.Provider, policy Policy) *Pipeline {
	p := &Pipeline{blobs: blobs}
	p.policy.Store(&policy)
	return p
}

// Policy returns the currently active policy.
func (p *Pipeline) Policy() Policy {
	return *p.policy.Load()
}

// SetPolicy atomically replaces the active policy.
func (p *Pipeline) SetPolicy(policy Policy) {
	p.policy.Store(&policy)
}

// Ingest classifies data, applies at most one combined resize/transcode
// transform per the active policy, and uploads the result to the blob
// store. It returns the storage key and final content type. Nothing is
// written on failure.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, declaredContentType string) (string, string, error) {
	if ct := strings.TrimSpace(strings.Split(declaredContentType, ";")[0]); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", "", fmt.Errorf("%w: %s", apperr.ErrInvalidContentType, ct)
	}
	policy := p.Policy()

	// AVIF/AV1-HEIF has no Go decoder; it is recognized by container
	// probe and can only pass through unchanged.
	if isAVIF(data) {
		if !policy.passesThrough("avif") {
			return "", "", fmt.Errorf("%w: no decoder for avif", apperr.ErrDecode)
		}
		return p.store(ctx, "avif", data)
	}

	format, width, height, err := sniff(data)
	if err != nil {
		return "", "", err
	}

	needsResize := width > policy.MaxDimension || height > policy.MaxDimension
	needsReencode := !policy.passesThrough(format)
	if !needsResize && !needsReencode {
		return p.store(ctx, format, data)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	if needsResize {
		// Fit preserves aspect ratio and never enlarges.
		img = imaging.Fit(img, policy.MaxDimension, policy.MaxDimension, imaging.Lanczos)
	}

	outFormat := policy.TargetFormat
	if !needsReencode && encodable(format) {
		outFormat = format
	}

	var buf bytes.Buffer
	var opts []imaging.EncodeOption
	if outFormat == "jpeg" {
		opts = append(opts, imaging.JPEGQuality(policy.Quality))
	}
	imgFormat, err := imaging.FormatFromExtension(extForFormat[outFormat])
	if err != nil {
		return "", "", fmt.Errorf("imagepipe: target format %s: %w", outFormat, err)
	}
	if err := imaging.Encode(&buf, img, imgFormat, opts...); err != nil {
		return "", "", fmt.Errorf("imagepipe: encode %s: %w", outFormat, err)
	}
	return p.store(ctx, outFormat, buf.Bytes())
}

func (p *Pipeline) store(ctx context.Context, format string, data []byte) (string, string, error) {
	key := uuid.New().String() + extForFormat[format]
	ct := blobstore.ContentTypeForKey(key)
	if err := p.blobs.Put(ctx, key, ct, data); err != nil {
		return "", "", fmt.Errorf("imagepipe: upload: %w", err)
	}
	return key, ct, nil
}

// sniff returns the format name and pixel dimensions without a full
// decode.
func sniff(data []byte) (string, int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", 0, 0, fmt.Errorf("%w: unrecognized image data", apperr.ErrInvalidContentType)
		}
		return "", 0, 0, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	return format, cfg.Width, cfg.Height, nil
}

// isAVIF reports whether data starts with an ISOBMFF ftyp box carrying
// an AV1 image brand.
func isAVIF(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(data[8:12])
	return brand == "avif" || brand == "avis"
}

func encodable(format string) bool {
	for _, f := range encodableFormats {
		if f == format {
			return true
		}
	}
	return false
}
