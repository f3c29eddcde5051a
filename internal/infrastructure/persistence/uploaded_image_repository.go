package persistence

import (
	"context"

	"github.com/astroguard/backend/internal/domain/media"
	"github.com/astroguard/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormUploadedImageRepository implements media.UploadedImageRepository using GORM
type GormUploadedImageRepository struct {
	db *gorm.DB
}

// NewGormUploadedImageRepository creates a new GormUploadedImageRepository
func NewGormUploadedImageRepository(db *gorm.DB) *GormUploadedImageRepository {
	return &GormUploadedImageRepository{db: db}
}

// Create inserts an uploaded image record
func (r *GormUploadedImageRepository) Create(ctx context.Context, image *media.UploadedImage) error {
	return translateError(r.db.WithContext(ctx).Create(image).Error)
}

// UpdateDetectionCount sets detection_count on the record with the given public URL
func (r *GormUploadedImageRepository) UpdateDetectionCount(ctx context.Context, publicURL string, count int) error {
	result := r.db.WithContext(ctx).
		Model(&media.UploadedImage{}).
		Where("public_url = ?", publicURL).
		Update("detection_count", count)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByPublicURL finds an uploaded image by its public URL
func (r *GormUploadedImageRepository) FindByPublicURL(ctx context.Context, publicURL string) (*media.UploadedImage, error) {
	var image media.UploadedImage
	if err := r.db.WithContext(ctx).Where("public_url = ?", publicURL).First(&image).Error; err != nil {
		return nil, translateError(err)
	}
	return &image, nil
}

// Ensure GormUploadedImageRepository implements UploadedImageRepository
var _ media.UploadedImageRepository = (*GormUploadedImageRepository)(nil)
