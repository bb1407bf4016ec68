// Package services defines the business logic for uploads, stored files,
// and categories. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// Each sentinel carries a domain.Kind, so the handler layer can translate
// it into an HTTP status without matching message text.
package services

import "github.com/filedock/go-file-backend/internal/domain"

var (
	// ErrEmptyUpload is returned when an upload carries no bytes.
	ErrEmptyUpload = domain.Ef(domain.KindValidation, "upload is empty")

	// ErrUploadTooLarge is returned when an upload exceeds the configured
	// size limit.
	ErrUploadTooLarge = domain.Ef(domain.KindValidation, "upload exceeds size limit")

	// ErrEmptyCategoryName is returned when a category is created with a
	// blank name.
	ErrEmptyCategoryName = domain.Ef(domain.KindValidation, "category name is empty")

	// ErrCategoryExists is returned when a category with the requested
	// name already exists. Duplicate webhook deliveries of the same
	// "create category" event land on this branch, which is what makes
	// the operation idempotent.
	ErrCategoryExists = domain.Ef(domain.KindValidation, "category already exists")

	// ErrCategoryNotFound indicates the referenced category does not exist.
	ErrCategoryNotFound = domain.Ef(domain.KindNotFound, "category not found")

	// ErrFileNotFound indicates the requested file row does not exist.
	ErrFileNotFound = domain.Ef(domain.KindNotFound, "file not found")

	// ErrEmptySuffix is returned when a suffix rename carries no suffix.
	ErrEmptySuffix = domain.Ef(domain.KindValidation, "suffix is empty")
)
