// Package imaging decodes uploaded photos and prepares them for inference.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the WebP decoder for phone and browser uploads

	"github.com/astroguard/backend/internal/domain/detection"
	infraconfig "github.com/astroguard/backend/internal/infrastructure/config"
)

const defaultJPEGQuality = 90

// defaultMaxPixels bounds the decode buffer, roughly 200MB of NRGBA
const defaultMaxPixels = 50_000_000

// Normalizer decodes an upload, applies its EXIF orientation, shrinks it to fit
// a square of MaxImageDimension and re-encodes it as JPEG.
type Normalizer struct {
	maxDimension int
	maxPixels    int
	quality      int
}

// NewNormalizer creates a Normalizer from detection configuration.
func NewNormalizer(cfg *infraconfig.DetectionConfig) *Normalizer {
	n := &Normalizer{quality: defaultJPEGQuality, maxPixels: defaultMaxPixels}
	if cfg != nil {
		n.maxDimension = cfg.MaxImageDimension
		if cfg.MaxImagePixels > 0 {
			n.maxPixels = cfg.MaxImagePixels
		}
		if cfg.JPEGQuality > 0 && cfg.JPEGQuality <= 100 {
			n.quality = cfg.JPEGQuality
		}
	}
	return n
}

// Normalize returns a JPEG copy of media ready for the detection service.
// Undecodable data, and images whose declared size exceeds the pixel budget,
// are reported as detection.ErrInvalidMedia before any pixel is decoded.
func (n *Normalizer) Normalize(media detection.Media) (detection.Media, error) {
	header, _, err := image.DecodeConfig(bytes.NewReader(media.Data))
	if err != nil {
		return detection.Media{}, detection.ErrInvalidMedia.
			WithMessage("Could not read the image file").
			Wrap(err)
	}
	if header.Width <= 0 || header.Height <= 0 ||
		int64(header.Width)*int64(header.Height) > int64(n.maxPixels) {
		return detection.Media{}, detection.ErrInvalidMedia.
			WithMessage(fmt.Sprintf("Image is too large (%dx%d)", header.Width, header.Height))
	}

	img, err := imaging.Decode(bytes.NewReader(media.Data), imaging.AutoOrientation(true))
	if err != nil {
		return detection.Media{}, detection.ErrInvalidMedia.
			WithMessage("Could not read the image file").
			Wrap(err)
	}

	if n.maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > n.maxDimension || b.Dy() > n.maxDimension {
			img = imaging.Fit(img, n.maxDimension, n.maxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return detection.Media{}, fmt.Errorf("encode normalized image: %w", err)
	}

	return detection.Media{
		FileName:    jpegName(media.FileName),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func jpegName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	return base + ".jpg"
}
