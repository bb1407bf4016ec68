// Package services – CategoryService.
//
// Categories are a small CRUD surface consumed by the upload path, the
// retrieval panel, and the conversation engine. Creation is idempotent
// under at-least-once webhook delivery because the uniqueness check runs
// before the insert and a lost race maps onto the same "already exists"
// answer.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/repo"
)

// CategoryService implements category use-cases over the metadata store.
type CategoryService struct {
	DB *gorm.DB
}

// Create adds a category with the given name.
//
// Returns ErrEmptyCategoryName for blank input and ErrCategoryExists when
// the name is taken, including the case where a concurrent duplicate event
// wins the insert race.
func (s *CategoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyCategoryName
	}

	if _, err := repo.GetCategoryByName(ctx, s.DB, name); err == nil {
		return nil, ErrCategoryExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	c, err := repo.CreateCategory(ctx, s.DB, name)
	if err != nil {
		// Duplicate delivery of the same event may have inserted the row
		// between our check and this insert.
		if _, rerr := repo.GetCategoryByName(ctx, s.DB, name); rerr == nil {
			return nil, ErrCategoryExists
		}
		return nil, err
	}
	return c, nil
}

// Get fetches a category by id.
func (s *CategoryService) Get(ctx context.Context, id uint) (*domain.Category, error) {
	c, err := repo.GetCategory(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

// GetByName fetches a category by its unique name.
func (s *CategoryService) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	c, err := repo.GetCategoryByName(ctx, s.DB, strings.TrimSpace(name))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

// List returns all categories, the seeded default first.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return repo.ListCategories(ctx, s.DB)
}

// Delete removes a category and nulls out every file and user-setting
// reference to it. Files that pointed at the category simply show no
// category afterwards.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	err := repo.DeleteCategory(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrCategoryNotFound
	}
	return err
}
