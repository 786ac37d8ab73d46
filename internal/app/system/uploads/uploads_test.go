package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.uber.org/zap"
)

func fileHeaders(t *testing.T, parts ...testutil.FilePart) []*multipart.FileHeader {
	t.Helper()
	req := testutil.MultipartRequest("POST", "/", nil, parts...)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("ParseMultipartForm() error = %v", err)
	}
	return req.MultipartForm.File["images"]
}

func TestImages_SaveAndEncode(t *testing.T) {
	blobs := testutil.NewMemBlobs()
	im := New(blobs, zap.NewNop())
	im.now = func() time.Time { return time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	fhs := fileHeaders(t, testutil.FilePart{Field: "images", Filename: "Room.PNG", Data: testutil.PNG})
	img, err := im.Save(ctx, "hostel-photos", fhs[0])
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(img.Key, "hostel-photos/2024/03/") || !strings.HasSuffix(img.Key, ".png") {
		t.Errorf("Key = %q", img.Key)
	}
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", img.ContentType)
	}

	enc, err := im.Encode(ctx, img)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	data, _ := base64.StdEncoding.DecodeString(enc.Data)
	if !bytes.Equal(data, testutil.PNG) || enc.ContentType != "image/png" {
		t.Errorf("Encode() round trip mismatch")
	}

	im.Delete(ctx, img)
	if blobs.Len() != 0 {
		t.Errorf("Delete() left %d blobs", blobs.Len())
	}
}

func TestImages_SaveBytesRejects(t *testing.T) {
	im := New(testutil.NewMemBlobs(), zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyFile},
		{"text", []byte("hello, not an image"), ErrNotImage},
		{"too large", append(append([]byte{}, testutil.PNG...), make([]byte, MaxImageBytes)...), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := im.SaveBytes(ctx, "x", "f.png", tt.data); !errors.Is(err, tt.want) {
				t.Errorf("SaveBytes() error = %v, want %v", err, tt.want)
			}
			if msg := UploadError(tt.want); msg == "" {
				t.Errorf("UploadError(%v) should have a client message", tt.want)
			}
		})
	}
}

func TestImages_SaveAllRollsBack(t *testing.T) {
	blobs := testutil.NewMemBlobs()
	im := New(blobs, zap.NewNop())
	ctx := context.Background()

	fhs := fileHeaders(t,
		testutil.FilePart{Field: "images", Filename: "a.png", Data: testutil.PNG},
		testutil.FilePart{Field: "images", Filename: "b.txt", Data: []byte("plain text")},
	)
	if _, err := im.SaveAll(ctx, "complaints", fhs, models.MaxComplaintImages); !errors.Is(err, ErrNotImage) {
		t.Fatalf("SaveAll() error = %v, want ErrNotImage", err)
	}
	if blobs.Len() != 0 {
		t.Errorf("SaveAll() left %d blobs after failure", blobs.Len())
	}

	if _, err := im.SaveAll(ctx, "complaints", fhs, 1); !errors.Is(err, ErrTooMany) {
		t.Errorf("SaveAll() over limit error = %v, want ErrTooMany", err)
	}
}

func TestImages_EncodeAllSkipsMissing(t *testing.T) {
	im := New(testutil.NewMemBlobs(), zap.NewNop())
	ctx := context.Background()
	img, err := im.SaveBytes(ctx, "p", "a.png", testutil.PNG)
	if err != nil {
		t.Fatalf("SaveBytes() error = %v", err)
	}
	out := im.EncodeAll(ctx, []models.Image{img, {Key: "missing", ContentType: "image/png"}})
	if len(out) != 1 {
		t.Errorf("EncodeAll() returned %d images, want 1", len(out))
	}
}
