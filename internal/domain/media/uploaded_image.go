// Package media models uploaded image records kept alongside object storage.
package media

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UploadedImage records an image stored in object storage and how many objects were detected in it
type UploadedImage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileName       string    `gorm:"type:varchar(255);not null"`
	StoragePath    string    `gorm:"type:varchar(512);not null"`
	PublicURL      string    `gorm:"type:varchar(1024);not null;uniqueIndex:idx_uploaded_images_public_url"`
	ContentType    string    `gorm:"type:varchar(100);not null"`
	SizeBytes      int64     `gorm:"not null"`
	DetectionCount int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UploadedImage) TableName() string {
	return "uploaded_images"
}

// NewUploadedImage creates a record for a freshly stored image with no detections yet
func NewUploadedImage(fileName, storagePath, publicURL, contentType string, size int64) *UploadedImage {
	return &UploadedImage{
		ID:          uuid.New(),
		FileName:    fileName,
		StoragePath: storagePath,
		PublicURL:   publicURL,
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   time.Now().UTC(),
	}
}

// UploadedImageRepository persists uploaded image records
type UploadedImageRepository interface {
	Create(ctx context.Context, image *UploadedImage) error
	// UpdateDetectionCount sets detection_count on the record with the given public URL
	UpdateDetectionCount(ctx context.Context, publicURL string, count int) error
	FindByPublicURL(ctx context.Context, publicURL string) (*UploadedImage, error)
}
