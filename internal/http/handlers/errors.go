// Package handlers – HTTP-layer error codes.
//
// Stable, machine-readable snake_case codes returned alongside HTTP status
// in every error envelope. Generic codes mirror common status semantics;
// domain-specific codes cover failures status alone cannot convey.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/services"
)

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeUploadFailed    = "upload_failed"
	ErrCodeDeleteFailed    = "delete_failed"
	ErrCodeRenameFailed    = "rename_failed"
	ErrCodeListFailed      = "list_failed"
)

// failFromService maps well-known service sentinels onto status/code pairs
// and falls back to a 500 with the given default code.
func failFromService(c *gin.Context, err error, defaultCode string) {
	switch {
	case errors.Is(err, services.ErrEmptyUpload),
		errors.Is(err, services.ErrEmptyCategoryName),
		errors.Is(err, services.ErrEmptySuffix):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUploadTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.Is(err, services.ErrCategoryExists):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrFileNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case domain.IsKind(err, domain.KindValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case domain.IsKind(err, domain.KindUpstream):
		fail(c, http.StatusBadGateway, ErrCodeInternal, "storage backend unavailable")
	default:
		fail(c, http.StatusInternalServerError, defaultCode, "internal server error")
	}
}
