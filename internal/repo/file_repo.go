// Package repo – FileRecord repository.
//
// The lookup functions mirror the retrieval-resolution chain: a file can be
// found by its canonical URL, by its backend-specific blob reference, or by
// its original file name. Each returns ErrNotFound on a miss so the resolver
// can fall through to the next strategy.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
)

// CreateFile inserts the metadata row for a completed upload.
func CreateFile(ctx context.Context, db *gorm.DB, f *domain.FileRecord) error {
	return db.WithContext(ctx).Create(f).Error
}

// GetFile fetches a file row by id, or ErrNotFound.
func GetFile(ctx context.Context, db *gorm.DB, id uint) (*domain.FileRecord, error) {
	var f domain.FileRecord
	if err := db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFileByURL fetches a file row by its exact canonical locator.
func GetFileByURL(ctx context.Context, db *gorm.DB, url string) (*domain.FileRecord, error) {
	var f domain.FileRecord
	if err := db.WithContext(ctx).First(&f, "url = ?", url).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFileByBlobRef fetches a file row whose backend reference equals ref.
func GetFileByBlobRef(ctx context.Context, db *gorm.DB, ref string) (*domain.FileRecord, error) {
	var f domain.FileRecord
	if err := db.WithContext(ctx).First(&f, "blob_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFileByName fetches the most recent file row with the given original
// file name. Names are not unique; the newest upload wins.
func GetFileByName(ctx context.Context, db *gorm.DB, name string) (*domain.FileRecord, error) {
	var f domain.FileRecord
	err := db.WithContext(ctx).
		Where("file_name = ?", name).
		Order("created_at desc").
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFilesPage returns a page of files, optionally filtered by category,
// ordered by creation time descending, plus the total count for pagination.
func ListFilesPage(ctx context.Context, db *gorm.DB, categoryID *uint, offset, limit int) ([]domain.FileRecord, int64, error) {
	q := db.WithContext(ctx).Model(&domain.FileRecord{})
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.FileRecord
	err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// UpdateFileLocator rewrites a file's canonical locator, blob reference, and
// suffix in one statement. Used by the suffix-rename operation, which must
// change url and blob_ref together.
func UpdateFileLocator(ctx context.Context, db *gorm.DB, id uint, url, blobRef string, suffix *string) error {
	res := db.WithContext(ctx).
		Model(&domain.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"url":           url,
			"blob_ref":      blobRef,
			"custom_suffix": suffix,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteFile removes a file row by id. Returns ErrNotFound when absent.
func DeleteFile(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.FileRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
