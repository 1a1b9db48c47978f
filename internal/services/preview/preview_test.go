package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func decodeBase64PNG(t *testing.T, s string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	return img
}

type fakeFaces struct {
	images map[int][]byte
	calls  int
}

func (f *fakeFaces) FaceImage(_ context.Context, faceID int) ([]byte, error) {
	f.calls++
	data, ok := f.images[faceID]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestFit_KeepsAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	dst := Fit(src, 72, 72)
	if dst.Bounds().Dx() != 72 || dst.Bounds().Dy() != 72 {
		t.Fatalf("Expected 72x72 canvas, got %v", dst.Bounds())
	}
	// 200x100 fitted into 72x72 is 72x36 centered vertically
	if _, _, _, a := dst.At(36, 2).RGBA(); a != 0 {
		t.Error("Expected transparent letterbox above the image")
	}
	if r, _, _, a := dst.At(36, 36).RGBA(); a == 0 || r == 0 {
		t.Error("Expected red pixel in the center")
	}
}

func TestFit_DefaultSize(t *testing.T) {
	dst := Fit(image.NewRGBA(image.Rect(0, 0, 10, 10)), 0, -1)
	if dst.Bounds().Dx() != DefaultSize || dst.Bounds().Dy() != DefaultSize {
		t.Errorf("Expected default size, got %v", dst.Bounds())
	}
}

func TestFit_EmptySource(t *testing.T) {
	dst := Fit(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10)
	if dst.Bounds().Dx() != 10 {
		t.Errorf("Expected 10px canvas, got %v", dst.Bounds())
	}
}

func TestThumbnail_InvalidData(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image"), 72, 72); err == nil {
		t.Error("Expected error for invalid image data")
	}
}

func TestFaceThumbnail_Caches(t *testing.T) {
	faces := &fakeFaces{images: map[int][]byte{7: solidPNG(t, 64, 64, color.White)}}
	svc := NewService(faces)
	ctx := context.Background()

	first, err := svc.FaceThumbnail(ctx, 7, 48, 48)
	if err != nil {
		t.Fatalf("FaceThumbnail failed: %v", err)
	}
	img := decodeBase64PNG(t, first)
	if img.Bounds().Dx() != 48 || img.Bounds().Dy() != 48 {
		t.Errorf("Expected 48x48 thumbnail, got %v", img.Bounds())
	}

	second, _ := svc.FaceThumbnail(ctx, 7, 48, 48)
	if second != first || faces.calls != 1 {
		t.Errorf("Expected cached result, got %d fetches", faces.calls)
	}

	// A different size renders again
	_, _ = svc.FaceThumbnail(ctx, 7, 0, 0)
	if faces.calls != 2 {
		t.Errorf("Expected second fetch for new size, got %d", faces.calls)
	}

	svc.Invalidate()
	_, _ = svc.FaceThumbnail(ctx, 7, 48, 48)
	if faces.calls != 3 {
		t.Errorf("Expected fetch after Invalidate, got %d", faces.calls)
	}
}

func TestFaceThumbnail_FetchError(t *testing.T) {
	svc := NewService(&fakeFaces{})
	if _, err := svc.FaceThumbnail(context.Background(), 1, 72, 72); err == nil {
		t.Error("Expected error for unknown face")
	}
}

func TestLogo(t *testing.T) {
	svc := NewService(&fakeFaces{})

	logo, err := svc.Logo(72, 72)
	if err != nil || logo != "" {
		t.Errorf("Expected empty logo before loading, got %q, %v", logo, err)
	}

	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, solidPNG(t, 20, 10, color.Black), 0o600); err != nil {
		t.Fatalf("Failed to write logo: %v", err)
	}
	if err := svc.LoadLogo(path); err != nil {
		t.Fatalf("LoadLogo failed: %v", err)
	}
	if !svc.HasLogo() {
		t.Error("Expected HasLogo after loading")
	}

	logo, err = svc.Logo(36, 36)
	if err != nil {
		t.Fatalf("Logo failed: %v", err)
	}
	if img := decodeBase64PNG(t, logo); img.Bounds().Dx() != 36 {
		t.Errorf("Expected 36px logo, got %v", img.Bounds())
	}

	if err := svc.LoadLogo(""); err != nil || svc.HasLogo() {
		t.Errorf("Expected empty path to clear logo, err=%v", err)
	}
	if err := svc.LoadLogo(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error for missing logo file")
	}
}
