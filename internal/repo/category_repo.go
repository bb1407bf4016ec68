// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Category
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a category is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCategory inserts a new category with the given name.
func CreateCategory(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	c := &domain.Category{
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategory fetches a single category by id, or ErrNotFound if missing.
func GetCategory(ctx context.Context, db *gorm.DB, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategoryByName fetches a single category by its unique name, or
// ErrNotFound if missing.
func GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by creation time ascending,
// so the seeded "default" category stays first.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

// DeleteCategory removes a category and nulls out every reference to it on
// files and user settings. Dependents are never cascade-deleted: files that
// pointed at the category simply end up uncategorized.
//
// Returns ErrNotFound when the category does not exist.
func DeleteCategory(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.FileRecord{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.UserSetting{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
