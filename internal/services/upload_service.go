// Package services – UploadService.
//
// The upload path glues validation, the uploader's persisted preferences,
// the storage router, and the metadata write together. The router performs
// the storage side effect; this service owns the FileRecord row and the
// "remember the last used category and backend" behavior.
package services

import (
	"context"
	"errors"
	"mime"
	"path"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/repo"
	"github.com/filedock/go-file-backend/internal/storage"
)

// UploadInput describes one inbound upload, from the web form or the bot.
type UploadInput struct {
	Data     []byte
	FileName string
	MimeType string

	// ChatID identifies the uploader when the upload came through a chat;
	// 0 for anonymous web uploads without a chat identity.
	ChatID int64

	// CategoryName optionally overrides the uploader's active category
	// (web form field). Unknown names are a validation error.
	CategoryName string

	// StorageOverride optionally overrides the uploader's persisted
	// backend preference for this upload (web form field).
	StorageOverride domain.StorageType
}

// UploadService stores a blob and records its metadata row.
type UploadService struct {
	DB             *gorm.DB
	Router         *storage.Router
	Categories     *CategoryService
	DefaultStorage domain.StorageType
	MaxUploadBytes int64
	Log            zerolog.Logger
}

// Upload validates the input, resolves the uploader's preferences, stores
// the blob through the router, and writes the FileRecord. On success the
// uploader's last-used category and backend are persisted back onto their
// settings row.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*domain.FileRecord, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if s.MaxUploadBytes > 0 && int64(len(in.Data)) > s.MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}
	if in.MimeType == "" {
		in.MimeType = mime.TypeByExtension(path.Ext(in.FileName))
	}
	if in.MimeType == "" {
		in.MimeType = "application/octet-stream"
	}

	pref := s.DefaultStorage
	var (
		categoryID *uint
		suffix     *string
		setting    *domain.UserSetting
	)

	if in.ChatID != 0 {
		var err error
		setting, err = repo.EnsureSetting(ctx, s.DB, in.ChatID, s.DefaultStorage)
		if err != nil {
			return nil, err
		}
		pref = setting.StorageType
		categoryID = setting.CategoryID
		suffix = setting.CustomSuffix
	}
	if in.StorageOverride.Valid() {
		pref = in.StorageOverride
	}
	if in.CategoryName != "" {
		cat, err := s.Categories.GetByName(ctx, in.CategoryName)
		if err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return nil, domain.Ef(domain.KindValidation, "unknown category %q", in.CategoryName)
			}
			return nil, err
		}
		categoryID = &cat.ID
	}

	res, err := s.Router.Store(ctx, storage.StoreInput{
		Data:           in.Data,
		FileName:       in.FileName,
		MimeType:       in.MimeType,
		UploaderChatID: in.ChatID,
		Preference:     pref,
		CustomSuffix:   suffix,
	})
	if err != nil {
		return nil, err
	}

	rec := &domain.FileRecord{
		URL:            res.URL,
		BlobRef:        res.BlobRef,
		RelayMessageID: res.RelayMessageID,
		CreatedAt:      time.Now().UTC(),
		FileName:       in.FileName,
		FileSize:       int64(len(in.Data)),
		MimeType:       in.MimeType,
		UploaderChatID: in.ChatID,
		StorageType:    res.StorageType,
		CategoryID:     categoryID,
		CustomSuffix:   suffix,
	}
	if err := repo.CreateFile(ctx, s.DB, rec); err != nil {
		return nil, err
	}

	// Remember the last-used category and requested backend. The requested
	// preference is persisted, not the fallback outcome, so a transient
	// object-store outage does not silently flip the user's choice.
	if in.ChatID != 0 {
		updated := false
		if in.StorageOverride.Valid() && setting.StorageType != in.StorageOverride {
			if err := repo.UpdateStorageType(ctx, s.DB, in.ChatID, in.StorageOverride); err != nil {
				s.Log.Warn().Err(err).Int64("chat_id", in.ChatID).Msg("persist storage preference")
			}
			updated = true
		}
		if categoryID != nil && (setting.CategoryID == nil || *setting.CategoryID != *categoryID) {
			if err := repo.UpdateCategoryRef(ctx, s.DB, in.ChatID, categoryID); err != nil {
				s.Log.Warn().Err(err).Int64("chat_id", in.ChatID).Msg("persist category preference")
			}
			updated = true
		}
		if updated {
			s.Log.Debug().Int64("chat_id", in.ChatID).Msg("persisted last-used upload preferences")
		}
	}

	return rec, nil
}
