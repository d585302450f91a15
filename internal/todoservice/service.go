// Package todoservice coordinates item records, image blobs, and the
// ingestion pipeline.
package todoservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/blobstore"
	"github.com/starford/raido/internal/imagepipe"
	"github.com/starford/raido/internal/itemstore"
	"github.com/starford/raido/internal/models"
)

// ImageSource is one image input to Create: either an external URL or
// raw bytes from an upload part. Exactly one of URL and Data is set.
type ImageSource struct {
	URL         string
	Data        []byte
	ContentType string
}

// ImageDetail is the result of GetImage: the blob plus the item that
// owns it.
type ImageDetail struct {
	Key         string
	ContentType string
	Body        []byte
	Owner       *models.Item
}

// Service coordinates storage and pipeline operations.
type Service struct {
	items  itemstore.Store
	blobs  blobstore.Provider
	pipe   *imagepipe.Pipeline
	logger *slog.Logger
}

// New creates a new todo service.
func New(items itemstore.Store, blobs blobstore.Provider, pipe *imagepipe.Pipeline, logger *slog.Logger) *Service {
	return &Service{items: items, blobs: blobs, pipe: pipe, logger: logger}
}

// List returns all items in creation order.
func (s *Service) List(ctx context.Context) ([]models.Item, error) {
	return s.items.Scan(ctx)
}

// Get returns a single item by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Item, error) {
	return s.items.Get(ctx, id)
}

// Create ingests every image source concurrently and persists the item
// only after all of them succeed. On any ingest failure the blobs
// already uploaded by this batch are deleted best-effort and nothing is
// persisted.
func (s *Service) Create(ctx context.Context, description string, sources []ImageSource) (*models.Item, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", apperr.ErrValidation)
	}
	if len(sources) > models.MaxImages {
		return nil, fmt.Errorf("%w: %d image sources (max %d)", apperr.ErrTooManyImages, len(sources), models.MaxImages)
	}

	keys := make([]string, len(sources))
	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			key, err := s.ingestSource(gCtx, src)
			if err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cleanupBlobs(keys)
		return nil, err
	}

	item := &models.Item{
		ID:          uuid.New().String(),
		Description: description,
		Created:     time.Now().UnixMilli(),
		Completed:   false,
	}
	if len(keys) > 0 {
		item.Images = keys
	}
	if err := s.items.Put(ctx, item); err != nil {
		s.cleanupBlobs(keys)
		return nil, err
	}
	return item, nil
}

// Update reconstructs the record from the stored item plus the two
// mutable fields. id, created, and images are never caller-writable.
func (s *Service) Update(ctx context.Context, id string, description *string, completed *bool) (*models.Item, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if description != nil {
		if strings.TrimSpace(*description) == "" {
			return nil, fmt.Errorf("%w: description must not be empty", apperr.ErrValidation)
		}
		item.Description = *description
	}
	if completed != nil {
		item.Completed = *completed
	}
	if err := s.items.Put(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the item record and every referenced blob, launching
// the blob deletes concurrently alongside the record delete. It returns
// the image keys that were removed.
func (s *Service) Delete(ctx context.Context, id string) ([]string, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.items.Delete(gCtx, id)
	})
	for _, key := range item.Images {
		g.Go(func() error {
			return s.blobs.Delete(gCtx, key)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return item.Images, nil
}

// GetImage returns a stored image and the item that references it. The
// owner is found by a full scan; item counts are human-scale here.
func (s *Service) GetImage(ctx context.Context, imageID string) (*ImageDetail, error) {
	body, ct, err := s.blobs.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		for _, key := range items[i].Images {
			if key == imageID {
				return &ImageDetail{Key: imageID, ContentType: ct, Body: body, Owner: &items[i]}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no item references image %s", apperr.ErrNotFound, imageID)
}

// ImageData returns a stored image body and content type without the
// owner lookup. Used for inline previews where the owner is already at
// hand.
func (s *Service) ImageData(ctx context.Context, key string) ([]byte, string, error) {
	return s.blobs.Get(ctx, key)
}

// ingestSource resolves one image source (fetch or upload) through the
// pipeline and returns the stored blob key.
func (s *Service) ingestSource(ctx context.Context, src ImageSource) (string, error) {
	data := src.Data
	declaredCT := src.ContentType
	if src.URL != "" {
		var err error
		data, declaredCT, err = imagepipe.FetchURL(ctx, src.URL, s.pipe.Policy().FetchLimitBytes)
		if err != nil {
			return "", err
		}
	}
	key, _, err := s.pipe.Ingest(ctx, data, declaredCT)
	return key, err
}

// cleanupBlobs best-effort deletes blobs uploaded by a failed batch.
// Failures are logged, never escalated: the operation already failed.
func (s *Service) cleanupBlobs(keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(context.Background(), key); err != nil {
			s.logger.Warn("orphan blob cleanup failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}
