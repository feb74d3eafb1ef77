package payload

import (
	"context"
	"errors"
	"fmt"

	"catalog-admin-service/internal/models"
)

var ErrBlobNotFound = errors.New("staged upload not found")

// BlobSource returns files staged in the session under their blob id.
type BlobSource interface {
	Blob(id string) (*models.FileRef, bool)
}

// ImageFetcher downloads a remote image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (*models.FileRef, error)
}

// Resolver turns image descriptors into file payloads. A Resolver serves one
// submit: every URL is resolved at most once and images are handled in order.
type Resolver struct {
	blobs   BlobSource
	fetcher ImageFetcher
	memo    map[string]*models.FileRef
}

func NewResolver(blobs BlobSource, fetcher ImageFetcher) *Resolver {
	return &Resolver{
		blobs:   blobs,
		fetcher: fetcher,
		memo:    make(map[string]*models.FileRef),
	}
}

// Resolve returns a copy of images in which every image lacking both an id and
// a file carries the file its URL points to. Persisted images keep their id.
func (r *Resolver) Resolve(ctx context.Context, images []models.VariantImage) ([]models.VariantImage, error) {
	if len(images) == 0 {
		return images, nil
	}
	out := make([]models.VariantImage, len(images))
	for i, img := range images {
		out[i] = img
		if img.ID != nil || img.File != nil {
			continue
		}
		if img.URL == "" {
			return nil, fmt.Errorf("image %d: %w", i, ErrUnresolvedImage)
		}
		file, err := r.resolveURL(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out[i].File = file
	}
	return out, nil
}

// ResolveVariants resolves the images of every row, in row order.
func (r *Resolver) ResolveVariants(ctx context.Context, rows []models.VariantRow) ([]models.VariantRow, error) {
	out := make([]models.VariantRow, len(rows))
	for i, row := range rows {
		images, err := r.Resolve(ctx, row.Images)
		if err != nil {
			return nil, fmt.Errorf("variant %d: %w", i, err)
		}
		out[i] = row.Clone()
		out[i].Images = images
	}
	return out, nil
}

func (r *Resolver) resolveURL(ctx context.Context, img models.VariantImage) (*models.FileRef, error) {
	if file, ok := r.memo[img.URL]; ok {
		return file, nil
	}

	var file *models.FileRef
	if img.IsBlob() {
		if r.blobs == nil {
			return nil, ErrBlobNotFound
		}
		staged, ok := r.blobs.Blob(img.BlobID())
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, img.BlobID())
		}
		file = staged
	} else {
		if r.fetcher == nil {
			return nil, ErrUnresolvedImage
		}
		fetched, err := r.fetcher.FetchImage(ctx, img.URL)
		if err != nil {
			return nil, err
		}
		file = fetched
	}
	r.memo[img.URL] = file
	return file, nil
}
