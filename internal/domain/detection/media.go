package detection

import (
	"path/filepath"
	"strings"

	"github.com/astroguard/backend/internal/domain/shared"
)

// ErrInvalidMedia is returned before any network call when an upload cannot be analyzed
var ErrInvalidMedia = shared.NewDomainError("INVALID_MEDIA", "Unsupported media file")

// Media is an uploaded file handed to the detection provider
type Media struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extension returns the lowercase file extension without the dot, derived from
// the file name or, failing that, the content type subtype
func (m Media) Extension() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(m.FileName)), "."); ext != "" {
		return ext
	}
	if _, sub, ok := strings.Cut(m.mediaType(), "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

func (m Media) mediaType() string {
	mt, _, _ := strings.Cut(m.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ValidateImage rejects anything that is not a non-empty image upload
func (m Media) ValidateImage() error {
	return m.validate("image/", "Please select an image file")
}

// ValidateVideo rejects anything that is not a non-empty video upload
func (m Media) ValidateVideo() error {
	return m.validate("video/", "Please select a video file")
}

func (m Media) validate(prefix, message string) error {
	if len(m.Data) == 0 {
		return ErrInvalidMedia.WithMessage("Uploaded file is empty")
	}
	if !strings.HasPrefix(m.mediaType(), prefix) {
		return ErrInvalidMedia.WithMessage(message)
	}
	return nil
}
