// Package uploads stores user images (passport photos, admission receipts,
// ID proofs, hostel photos, complaint photos) in the configured blob store
// and returns them to clients as base64.
package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 5 << 20

var (
	ErrTooLarge  = errors.New("Image must be 5MB or smaller")
	ErrNotImage  = errors.New("Only image files are allowed")
	ErrTooMany   = errors.New("too many images")
	ErrEmptyFile = errors.New("uploaded file is empty")
)

// Blobs is the subset of storage.Store the service uses.
type Blobs interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Images saves and loads images under a key prefix per use.
type Images struct {
	blobs Blobs
	log   *zap.Logger
	now   func() time.Time
}

// New creates an Images helper over blobs.
func New(blobs Blobs, log *zap.Logger) *Images {
	return &Images{blobs: blobs, log: log, now: time.Now}
}

// Save validates and stores one uploaded file under prefix
// (e.g. "passport-photos") and returns its reference.
func (im *Images) Save(ctx context.Context, prefix string, fh *multipart.FileHeader) (models.Image, error) {
	if fh.Size > MaxImageBytes {
		return models.Image{}, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return models.Image{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// Read one byte past the cap so oversized bodies are caught even when
	// the header under-reports the size.
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return models.Image{}, fmt.Errorf("read upload: %w", err)
	}
	return im.SaveBytes(ctx, prefix, fh.Filename, data)
}

// SaveBytes stores raw image bytes. The content type is sniffed from the
// data, never taken from the client.
func (im *Images) SaveBytes(ctx context.Context, prefix, filename string, data []byte) (models.Image, error) {
	if len(data) == 0 {
		return models.Image{}, ErrEmptyFile
	}
	if len(data) > MaxImageBytes {
		return models.Image{}, ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return models.Image{}, ErrNotImage
	}

	now := im.now().UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%s%s", prefix, now.Year(), int(now.Month()), uuid.New().String(), strings.ToLower(path.Ext(filename)))
	if err := im.blobs.Put(ctx, key, bytes.NewReader(data), &storage.PutOptions{ContentType: ct}); err != nil {
		return models.Image{}, fmt.Errorf("store image: %w", err)
	}
	return models.Image{Key: key, ContentType: ct}, nil
}

// SaveAll stores up to max files. Images already stored are removed again
// when a later file fails.
func (im *Images) SaveAll(ctx context.Context, prefix string, files []*multipart.FileHeader, max int) ([]models.Image, error) {
	if len(files) > max {
		return nil, ErrTooMany
	}
	out := make([]models.Image, 0, len(files))
	for _, fh := range files {
		img, err := im.Save(ctx, prefix, fh)
		if err != nil {
			im.DeleteAll(ctx, out)
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// Encode loads an image and returns it base64-encoded.
func (im *Images) Encode(ctx context.Context, img models.Image) (models.EncodedImage, error) {
	rc, err := im.blobs.Get(ctx, img.Key)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("load image: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("read image: %w", err)
	}
	return models.EncodedImage{
		ContentType: img.ContentType,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, nil
}

// EncodeAll encodes every image, skipping (and logging) those that cannot
// be loaded so one missing blob does not hide the rest.
func (im *Images) EncodeAll(ctx context.Context, imgs []models.Image) []models.EncodedImage {
	out := make([]models.EncodedImage, 0, len(imgs))
	for _, img := range imgs {
		enc, err := im.Encode(ctx, img)
		if err != nil {
			im.log.Warn("image unavailable", zap.String("key", img.Key), zap.Error(err))
			continue
		}
		out = append(out, enc)
	}
	return out
}

// Delete removes an image; failures are logged since the owning document
// has already changed.
func (im *Images) Delete(ctx context.Context, img models.Image) {
	if img.IsZero() {
		return
	}
	if err := im.blobs.Delete(ctx, img.Key); err != nil {
		im.log.Warn("failed to delete image", zap.String("key", img.Key), zap.Error(err))
	}
}

// DeleteAll removes every image in imgs.
func (im *Images) DeleteAll(ctx context.Context, imgs []models.Image) {
	for _, img := range imgs {
		im.Delete(ctx, img)
	}
}

// UploadError maps a Save error to a client message, or "" for errors
// that should be reported as 500.
func UploadError(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge), errors.Is(err, ErrNotImage), errors.Is(err, ErrEmptyFile):
		return err.Error()
	case errors.Is(err, ErrTooMany):
		return "Too many images uploaded"
	}
	return ""
}
