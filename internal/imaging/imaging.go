// Package imaging validates, downscales and stores uploaded listing photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height for stored images.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrUnsupported is returned for inputs that are not JPEG or PNG.
var ErrUnsupported = errors.New("unsupported image format (only JPEG and PNG accepted)")

// ErrTooLarge is returned when the input exceeds the configured byte limit.
var ErrTooLarge = errors.New("image is too large")

// ProcessResult contains the processed image data.
type ProcessResult struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process reads image data, validates the format by sniffing bytes,
// downscales if larger than MaxDimension, and re-encodes as JPEG.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrUnsupported, err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &ProcessResult{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Store writes processed images into a directory under random names.
type Store struct {
	Dir      string
	URLBase  string
	MaxBytes int64
}

// Save processes r and writes the result to the store directory. It returns
// the public path of the stored file, e.g. "/uploads/<uuid>.jpg".
func (s *Store) Save(r io.Reader) (string, *ProcessResult, error) {
	if s.MaxBytes > 0 {
		r = io.LimitReader(r, s.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return "", nil, ErrTooLarge
	}

	res, err := Process(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating upload dir: %w", err)
	}
	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.Dir, name), res.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("writing image: %w", err)
	}
	base := s.URLBase
	if base == "" {
		base = "/uploads"
	}
	return base + "/" + name, res, nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
