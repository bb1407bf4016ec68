// Package repo – UserSetting repository.
//
// Every inbound chat event and upload reads the chat's settings through
// EnsureSetting, which creates the row with deployment defaults on first
// contact. Concurrent writers to the same chat resolve by last-write-wins;
// no application-level locking is layered on top of the database.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
)

// EnsureSetting returns the settings row for chatID, creating it with the
// given default storage preference when the chat is seen for the first time.
// A lost insert race is resolved by re-reading the winner's row.
func EnsureSetting(ctx context.Context, db *gorm.DB, chatID int64, defaultStorage domain.StorageType) (*domain.UserSetting, error) {
	var s domain.UserSetting
	err := db.WithContext(ctx).First(&s, "chat_id = ?", chatID).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	s = domain.UserSetting{
		ChatID:      chatID,
		StorageType: defaultStorage,
		WaitingFor:  domain.WaitingNone,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&s).Error; err != nil {
		// Another invocation created the row between our read and insert.
		var winner domain.UserSetting
		if rerr := db.WithContext(ctx).First(&winner, "chat_id = ?", chatID).Error; rerr == nil {
			return &winner, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpdateWaiting sets the conversational waiting state for chatID.
func UpdateWaiting(ctx context.Context, db *gorm.DB, chatID int64, state domain.WaitingState) error {
	return settingUpdates(ctx, db, chatID, map[string]any{"waiting_for": state})
}

// UpdateStorageType persists the chat's preferred backend.
func UpdateStorageType(ctx context.Context, db *gorm.DB, chatID int64, t domain.StorageType) error {
	return settingUpdates(ctx, db, chatID, map[string]any{"storage_type": t})
}

// UpdateCategoryRef points the chat at a category; nil clears the reference.
func UpdateCategoryRef(ctx context.Context, db *gorm.DB, chatID int64, categoryID *uint) error {
	return settingUpdates(ctx, db, chatID, map[string]any{"category_id": categoryID})
}

// UpdateSuffix persists the chat's custom locator suffix; nil clears it.
func UpdateSuffix(ctx context.Context, db *gorm.DB, chatID int64, suffix *string) error {
	return settingUpdates(ctx, db, chatID, map[string]any{"custom_suffix": suffix})
}

// settingUpdates applies a partial update to the chat's settings row.
// Returns ErrNotFound when the row is missing (EnsureSetting not called).
func settingUpdates(ctx context.Context, db *gorm.DB, chatID int64, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.UserSetting{}).
		Where("chat_id = ?", chatID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
