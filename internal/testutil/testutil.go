// Package testutil provides shared test helpers for setting up stores
// and generating image fixtures.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/starford/raido/internal/blobstore"
	"github.com/starford/raido/internal/itemstore"
)

// TestStore creates a temporary SQLite item database that is
// automatically cleaned up.
func TestStore(t *testing.T) *itemstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := itemstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobs creates a temporary blob directory with an FS provider.
func TestBlobs(t *testing.T) (string, *blobstore.FS) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blobstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, blobs
}

// PNG returns an encoded width x height PNG test image.
func PNG(t *testing.T, width, height int) []byte {
	t.Helper()
	return encode(t, width, height, func(buf *bytes.Buffer, img image.Image) error {
		return png.Encode(buf, img)
	})
}

// JPEG returns an encoded width x height JPEG test image.
func JPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	return encode(t, width, height, func(buf *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	})
}

func encode(t *testing.T, width, height int, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}
