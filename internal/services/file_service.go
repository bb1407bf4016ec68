// Package services – FileService.
//
// Covers the mutations on stored files: the suffix-rename operation and
// deletion (single and bulk). Renames must change the locator and the blob
// reference together; for object blobs the bytes are copied to the new key
// and the old key removed, while relay references are not renamable and
// only the metadata changes.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/repo"
	"github.com/filedock/go-file-backend/internal/storage"
)

// FileService implements file mutations and listing.
type FileService struct {
	DB      *gorm.DB
	Objects storage.ObjectStore // nil when the deployment runs relay-only
	Relay   storage.Relay
	BaseURL string
	Log     zerolog.Logger
}

// UpdateSuffix renames a file's locator to use the given custom suffix.
//
// Object backend: the blob is copied to the new key, the old key deleted,
// and url/blob_ref rewritten together. Relay backend: the attachment
// reference cannot be renamed, so only the locator metadata changes.
func (s *FileService) UpdateSuffix(ctx context.Context, url, suffix string) (*domain.FileRecord, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return nil, ErrEmptySuffix
	}

	rec, err := repo.GetFileByURL(ctx, s.DB, url)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	newBlobRef := rec.BlobRef
	var newKey string

	switch rec.StorageType {
	case domain.StorageObject:
		if s.Objects == nil {
			return nil, domain.Ef(domain.KindUpstream, "object backend not configured")
		}
		newKey = storage.KeyWithSuffix(rec.BlobRef, suffix)
		if newKey != rec.BlobRef {
			if err := s.Objects.Copy(ctx, rec.BlobRef, newKey); err != nil {
				return nil, err
			}
			if err := s.Objects.Delete(ctx, rec.BlobRef); err != nil {
				// The copy already succeeded; the stale key only wastes
				// space and is safe to leave behind.
				s.Log.Warn().Err(err).Str("key", rec.BlobRef).Msg("delete old object key after rename")
			}
		}
		newBlobRef = newKey
	case domain.StorageRelay:
		newKey = storage.KeyWithSuffix(lastSegment(rec.URL), suffix)
	default:
		return nil, domain.Ef(domain.KindUpstream, "unknown storage type %q", rec.StorageType)
	}

	newURL := storage.LocatorFor(s.BaseURL, newKey)
	if err := repo.UpdateFileLocator(ctx, s.DB, rec.ID, newURL, newBlobRef, &suffix); err != nil {
		return nil, err
	}

	rec.URL = newURL
	rec.BlobRef = newBlobRef
	rec.CustomSuffix = &suffix
	return rec, nil
}

// Delete removes a file's metadata row and its blob. Blob removal is
// best-effort: a backend failure is logged and the row still goes away
// (eventual, best-effort consistency is the accepted trade-off).
func (s *FileService) Delete(ctx context.Context, id uint) error {
	rec, err := repo.GetFile(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	s.deleteBlob(ctx, rec)
	return repo.DeleteFile(ctx, s.DB, rec.ID)
}

// DeleteByURLs removes a batch of files identified by their canonical
// locators. Each entry is attempted independently; the count of removed
// rows is returned along with the urls that failed.
func (s *FileService) DeleteByURLs(ctx context.Context, urls []string) (int, []string) {
	deleted := 0
	var failed []string
	for _, u := range urls {
		rec, err := repo.GetFileByURL(ctx, s.DB, u)
		if err != nil {
			failed = append(failed, u)
			continue
		}
		s.deleteBlob(ctx, rec)
		if err := repo.DeleteFile(ctx, s.DB, rec.ID); err != nil {
			s.Log.Warn().Err(err).Str("url", u).Msg("delete file row")
			failed = append(failed, u)
			continue
		}
		deleted++
	}
	return deleted, failed
}

// ListPage returns a page of files, optionally restricted to a category id.
func (s *FileService) ListPage(ctx context.Context, categoryID *uint, page, pageSize int) ([]domain.FileRecord, int64, error) {
	offset := (page - 1) * pageSize
	return repo.ListFilesPage(ctx, s.DB, categoryID, offset, pageSize)
}

// deleteBlob removes the backend bytes for a record, logging failures.
func (s *FileService) deleteBlob(ctx context.Context, rec *domain.FileRecord) {
	switch rec.StorageType {
	case domain.StorageObject:
		if s.Objects == nil {
			return
		}
		if err := s.Objects.Delete(ctx, rec.BlobRef); err != nil {
			s.Log.Warn().Err(err).Str("key", rec.BlobRef).Msg("delete object blob")
		}
	case domain.StorageRelay:
		if rec.RelayMessageID == 0 || s.Relay == nil {
			return
		}
		if err := s.Relay.DeleteMessage(ctx, rec.RelayMessageID); err != nil {
			s.Log.Warn().Err(err).Int("message_id", rec.RelayMessageID).Msg("delete relay carrier message")
		}
	}
}

// lastSegment returns the final path segment of a locator.
func lastSegment(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
