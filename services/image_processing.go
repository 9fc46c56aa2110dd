package services

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
)

const (
	analysisMaxSide     = 1024
	analysisJPEGQuality = 85
)

// PrepareForAnalysis downsizes a photo so the longest side is at most 1024px and re-encodes it as JPEG.
// Images already small enough are re-encoded without resizing.
// - imageBytes: The uploaded photo as a byte slice (jpeg, png).
// Returns the encoded bytes and their MIME type.
func PrepareForAnalysis(imageBytes []byte) ([]byte, string, error) {
	if len(imageBytes) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}

	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	img = fitLongestSide(img, analysisMaxSide)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(analysisJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image to jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func fitLongestSide(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSide && height <= maxSide {
		return img
	}
	if width >= height {
		return imaging.Resize(img, maxSide, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxSide, imaging.Lanczos)
}

// DetectImageType sniffs the MIME type and reports whether it's an accepted upload.
func DetectImageType(content []byte) (string, bool) {
	mimeType := http.DetectContentType(content)
	return mimeType, allowedImageMimeTypes[mimeType]
}

var allowedImageMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}
