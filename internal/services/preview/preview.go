// Package preview renders button images: face thumbnails and the auto preset
// logo, scaled to the host's button size and encoded as base64 PNG.
package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	// Register decoders for face images served as JPEG or GIF.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultSize is the button edge length used when the host does not report one.
const DefaultSize = 72

// FaceSource fetches raw face images.
type FaceSource interface {
	FaceImage(ctx context.Context, faceID int) ([]byte, error)
}

type cacheKey struct {
	faceID        int
	width, height int
}

// Service renders and caches button images.
type Service struct {
	mu    sync.RWMutex
	faces FaceSource
	cache map[cacheKey]string
	logo  image.Image
}

// NewService creates a preview service.
func NewService(faces FaceSource) *Service {
	return &Service{
		faces: faces,
		cache: make(map[cacheKey]string),
	}
}

// LoadLogo reads a logo image from disk. An empty path clears the logo.
func (s *Service) LoadLogo(path string) error {
	if path == "" {
		s.mu.Lock()
		s.logo = nil
		s.mu.Unlock()
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read logo: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode logo: %w", err)
	}
	s.mu.Lock()
	s.logo = img
	s.mu.Unlock()
	return nil
}

// HasLogo reports whether a logo is loaded.
func (s *Service) HasLogo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logo != nil
}

// Logo returns the logo scaled to the button size, or "" when none is loaded.
func (s *Service) Logo(width, height int) (string, error) {
	s.mu.RLock()
	logo := s.logo
	s.mu.RUnlock()
	if logo == nil {
		return "", nil
	}
	return encodeBase64(Fit(logo, width, height))
}

// FaceThumbnail returns a face image scaled to the button size. Results are
// cached per face and size until Invalidate is called.
func (s *Service) FaceThumbnail(ctx context.Context, faceID, width, height int) (string, error) {
	width, height = normalizeSize(width, height)
	key := cacheKey{faceID: faceID, width: width, height: height}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.faces.FaceImage(ctx, faceID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch face %d: %w", faceID, err)
	}
	encoded, err := Thumbnail(data, width, height)
	if err != nil {
		return "", fmt.Errorf("failed to render face %d: %w", faceID, err)
	}

	s.mu.Lock()
	s.cache[key] = encoded
	s.mu.Unlock()
	return encoded, nil
}

// Invalidate drops every cached thumbnail.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[cacheKey]string)
}

// Thumbnail decodes an image and returns it fitted into width x height as
// base64 PNG.
func Thumbnail(data []byte, width, height int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return encodeBase64(Fit(img, width, height))
}

// Fit scales an image to cover at most width x height, keeping its aspect
// ratio, and centers it on a transparent canvas of exactly that size.
func Fit(src image.Image, width, height int) *image.RGBA {
	width, height = normalizeSize(width, height)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}
	w, h := width, sb.Dy()*width/sb.Dx()
	if h > height {
		w, h = sb.Dx()*height/sb.Dy(), height
	}
	w, h = max(w, 1), max(h, 1)
	x0, y0 := (width-w)/2, (height-h)/2

	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, sb, draw.Over, nil)
	return dst
}

func normalizeSize(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	return width, height
}

func encodeBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
