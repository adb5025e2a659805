package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_backend/models"
)

type fakeBucket struct {
	mu        sync.Mutex
	uploaded  map[string]string
	deleted   []string
	uploadErr error
}

func stubBucket(t *testing.T) *fakeBucket {
	t.Helper()
	b := &fakeBucket{uploaded: map[string]string{}}
	prevUpload, prevDelete := uploadObject, deleteObject
	uploadObject = func(_ context.Context, key string, _ []byte, contentType string) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.uploadErr != nil {
			return b.uploadErr
		}
		b.uploaded[key] = contentType
		return nil
	}
	deleteObject = func(_ context.Context, key string) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.deleted = append(b.deleted, key)
		return nil
	}
	t.Cleanup(func() { uploadObject, deleteObject = prevUpload, prevDelete })
	return b
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, r *gin.Engine, itemId, token string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/menu-items/"+itemId+"/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadMenuItemImage(t *testing.T) {
	openTestDB(t)
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.kitchen.local/")
	bucket := stubBucket(t)
	_, r := newTestRouter(t)
	token := tokenFor(t, models.RoleAdmin)

	item, err := models.CreateMenuItem(context.Background(), &models.NewMenuItem{Name: "Burger", Tags: []models.ItemTag{models.ItemTagPrimaryItem}})
	if err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}

	w := uploadRequest(t, r, item.ID, token, pngBytes(t))
	if w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp uploadImageResponse
	decode(t, w, &resp)
	if !strings.HasPrefix(resp.ObjectKey, "menu-items/"+item.ID+"/") || !strings.HasSuffix(resp.ObjectKey, ".png") {
		t.Fatalf("unexpected object key %q", resp.ObjectKey)
	}
	if resp.ImageURL != "https://cdn.kitchen.local/"+resp.ObjectKey {
		t.Fatalf("unexpected image url %q", resp.ImageURL)
	}
	if bucket.uploaded[resp.ObjectKey] != "image/png" || bucket.uploaded[resp.ThumbnailObjectKey] != "image/jpeg" {
		t.Fatalf("expected the image and a jpeg thumbnail to be stored, got %v", bucket.uploaded)
	}

	stored, err := models.GetMenuItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetMenuItem: %v", err)
	}
	if stored.Image == nil || *stored.Image != resp.ImageURL || stored.ThumbnailImage == nil || *stored.ThumbnailImage != resp.ThumbnailURL {
		t.Fatalf("expected the item to point at the upload, got %+v", stored)
	}
}

func TestUploadMenuItemImage_Rejections(t *testing.T) {
	openTestDB(t)
	bucket := stubBucket(t)
	_, r := newTestRouter(t)
	token := tokenFor(t, models.RoleAdmin)

	item, err := models.CreateMenuItem(context.Background(), &models.NewMenuItem{Name: "Burger", Tags: []models.ItemTag{models.ItemTagPrimaryItem}})
	if err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}

	if w := uploadRequest(t, r, item.ID, token, []byte("plain text, not an image")); w.Code != http.StatusBadRequest {
		t.Fatalf("text upload: expected 400, got %d", w.Code)
	}
	if w := uploadRequest(t, r, "missing", token, pngBytes(t)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item: expected 404, got %d", w.Code)
	}
	if len(bucket.uploaded) != 0 {
		t.Fatalf("rejected uploads must not reach the bucket, got %v", bucket.uploaded)
	}

	bucket.uploadErr = errors.New("bucket unavailable")
	if w := uploadRequest(t, r, item.ID, token, pngBytes(t)); w.Code != http.StatusBadGateway {
		t.Fatalf("storage failure: expected 502, got %d", w.Code)
	}
}
