package todoservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/imagepipe"
	"github.com/starford/raido/internal/testutil"
)

func testService(t *testing.T) (*Service, string) {
	t.Helper()
	items := testutil.TestStore(t)
	blobDir, blobs := testutil.TestBlobs(t)
	pipe := imagepipe.New(blobs, imagepipe.DefaultPolicy())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(items, blobs, pipe, logger), blobDir
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestCreateWithoutImages(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, "Buy milk", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.ID == "" {
		t.Error("id not assigned")
	}
	if item.Created <= 0 {
		t.Errorf("created = %d", item.Created)
	}
	if item.Completed {
		t.Error("completed should default to false")
	}
	if item.Images != nil {
		t.Errorf("images = %v, want nil", item.Images)
	}

	got, err := svc.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != item.ID || got.Description != item.Description ||
		got.Created != item.Created || got.Completed != item.Completed ||
		got.Images != nil {
		t.Errorf("Get = %+v, want %+v", got, item)
	}
}

func TestCreateAssignsUniqueIDsAndOrder(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		item, err := svc.Create(ctx, "item", nil)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[item.ID] {
			t.Fatalf("duplicate id %s", item.ID)
		}
		seen[item.ID] = true
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("len = %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Created < items[i-1].Created {
			t.Errorf("created not non-decreasing at %d", i)
		}
	}
}

func TestCreateWithImages(t *testing.T) {
	svc, blobDir := testService(t)
	ctx := context.Background()

	sources := []ImageSource{
		{Data: testutil.JPEG(t, 100, 100), ContentType: "image/jpeg"},
		{Data: testutil.PNG(t, 800, 800), ContentType: "image/png"},
	}
	item, err := svc.Create(ctx, "with pics", sources)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(item.Images) != 2 {
		t.Fatalf("images = %v", item.Images)
	}
	if n := blobCount(t, blobDir); n != 2 {
		t.Errorf("blob count = %d, want 2", n)
	}
	for _, key := range item.Images {
		if _, _, err := svc.ImageData(ctx, key); err != nil {
			t.Errorf("image %s not readable: %v", key, err)
		}
	}
}

func TestCreateRejectsTooManySources(t *testing.T) {
	svc, blobDir := testService(t)
	ctx := context.Background()

	sources := make([]ImageSource, 7)
	for i := range sources {
		sources[i] = ImageSource{Data: testutil.JPEG(t, 10, 10), ContentType: "image/jpeg"}
	}
	_, err := svc.Create(ctx, "too many", sources)
	if !errors.Is(err, apperr.ErrTooManyImages) {
		t.Fatalf("err = %v, want ErrTooManyImages", err)
	}

	items, _ := svc.List(ctx)
	if len(items) != 0 {
		t.Error("no item should be persisted")
	}
	if n := blobCount(t, blobDir); n != 0 {
		t.Errorf("blob count = %d, want 0", n)
	}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.Create(context.Background(), "  ", nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreatePartialFailureCleansUpBlobs(t *testing.T) {
	svc, blobDir := testService(t)
	ctx := context.Background()

	sources := []ImageSource{
		{Data: testutil.JPEG(t, 100, 100), ContentType: "image/jpeg"},
		{Data: []byte("not an image"), ContentType: "image/png"},
		{Data: testutil.JPEG(t, 100, 100), ContentType: "image/jpeg"},
	}
	_, err := svc.Create(ctx, "partial", sources)
	if err == nil {
		t.Fatal("expected create to fail")
	}

	items, _ := svc.List(ctx)
	if len(items) != 0 {
		t.Error("no item should be persisted on partial failure")
	}
	if n := blobCount(t, blobDir); n != 0 {
		t.Errorf("blob count = %d, want 0 after compensating cleanup", n)
	}
}

func TestUpdateTouchesOnlyMutableFields(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, "original", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	completed := true
	updated, err := svc.Update(ctx, item.ID, nil, &completed)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Completed {
		t.Error("completed not updated")
	}
	if updated.Description != "original" {
		t.Errorf("description changed: %q", updated.Description)
	}
	if updated.Created != item.Created {
		t.Errorf("created changed: %d != %d", updated.Created, item.Created)
	}
	if updated.ID != item.ID {
		t.Errorf("id changed: %s", updated.ID)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	svc, _ := testService(t)
	desc := "x"
	_, err := svc.Update(context.Background(), "nope", &desc, nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesItemAndBlobs(t *testing.T) {
	svc, blobDir := testService(t)
	ctx := context.Background()

	sources := []ImageSource{
		{Data: testutil.JPEG(t, 50, 50), ContentType: "image/jpeg"},
		{Data: testutil.JPEG(t, 60, 60), ContentType: "image/jpeg"},
	}
	item, err := svc.Create(ctx, "doomed", sources)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := svc.Delete(ctx, item.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v", removed)
	}
	if _, err := svc.Get(ctx, item.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("item still readable: %v", err)
	}
	for _, key := range removed {
		if _, _, err := svc.ImageData(ctx, key); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("blob %s still readable: %v", key, err)
		}
	}
	if n := blobCount(t, blobDir); n != 0 {
		t.Errorf("blob count = %d, want 0", n)
	}
}

func TestGetImageFindsOwner(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "other", nil)
	if err != nil {
		t.Fatal(err)
	}
	item, err := svc.Create(ctx, "owner", []ImageSource{
		{Data: testutil.JPEG(t, 50, 50), ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := svc.GetImage(ctx, item.Images[0])
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if detail.Owner == nil || detail.Owner.ID != item.ID {
		t.Errorf("owner = %+v, want item %s", detail.Owner, item.ID)
	}
	if detail.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", detail.ContentType)
	}
	if len(detail.Body) == 0 {
		t.Error("empty body")
	}
}

func TestGetImageOrphanBlob(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	// A blob no item references is not served.
	key, _, err := svc.pipe.Ingest(ctx, testutil.JPEG(t, 20, 20), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetImage(ctx, key); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for orphan blob", err)
	}
}

func TestGetImageMissing(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.GetImage(context.Background(), "missing.jpg")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
