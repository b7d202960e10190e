// Package imageio decodes client supplied images and stages them on disk for
// the inference engine.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"fastvlmd/internal/common/fsutil"
)

// JPEGQuality is used when re-encoding staged images.
const JPEGQuality = 90

// ErrEmpty is returned for an empty image payload.
var ErrEmpty = errors.New("empty image data")

// Decoded is a raster image together with its source format.
type Decoded struct {
	Image  image.Image
	Format string
}

// Width of the decoded image in pixels.
func (d Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height of the decoded image in pixels.
func (d Decoded) Height() int { return d.Image.Bounds().Dy() }

// DecodeBase64 decodes standard or URL-safe base64, tolerating a data URL
// prefix and missing padding.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return nil, ErrEmpty
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return nil, fmt.Errorf("base64: %w", err)
}

// Decode parses raw image bytes in any registered format.
func Decode(b []byte) (Decoded, error) {
	if len(b) == 0 {
		return Decoded{}, ErrEmpty
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{Image: img, Format: format}, nil
}

// Fit downsizes img so neither side exceeds maxSide. Smaller images and a
// non-positive maxSide return img unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// Staged is an image written to a temporary JPEG file.
type Staged struct {
	Path   string
	Width  int
	Height int
}

// Remove deletes the staged file, ignoring errors.
func (s Staged) Remove() { fsutil.RemoveQuietly(s.Path) }

// Bytes reads the staged file back.
func (s Staged) Bytes() ([]byte, error) { return os.ReadFile(s.Path) }

// Stage resizes img to maxSide and writes it as JPEG into dir (os.TempDir when
// empty, created when missing). The caller owns the file and should call Remove.
func Stage(img image.Image, dir string, maxSide int) (Staged, error) {
	if dir == "" {
		dir = os.TempDir()
	} else if err := fsutil.EnsureDir(dir); err != nil {
		return Staged{}, err
	}
	img = Fit(img, maxSide)
	p := filepath.Join(dir, "fastvlm-"+uuid.NewString()+".jpg")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Staged{}, fmt.Errorf("create temp image: %w", err)
	}
	if err := jpeg.Encode(f, flatten(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		_ = f.Close()
		fsutil.RemoveQuietly(p)
		return Staged{}, fmt.Errorf("encode jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		fsutil.RemoveQuietly(p)
		return Staged{}, fmt.Errorf("close temp image: %w", err)
	}
	b := img.Bounds()
	return Staged{Path: p, Width: b.Dx(), Height: b.Dy()}, nil
}

// flatten composites transparent images onto white; JPEG has no alpha.
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray:
		return img
	}
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
