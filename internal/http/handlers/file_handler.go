// File endpoints.
//
//   - GET  /{path}          (serve bytes; mounted via the router's NoRoute)
//   - GET  /files           (list, paginated, optional category filter)
//   - POST /update-suffix   (rename a file's locator)
//   - POST /delete          (remove one file by id)
//   - POST /delete-multiple (remove a batch by canonical urls)
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/http/middleware"
	"github.com/filedock/go-file-backend/internal/utils"
)

// maxPageSize bounds GET /files pagination.
const maxPageSize = 100

// FileSummary is one row of the GET /files listing.
type FileSummary struct {
	ID          uint      `json:"id"`
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	StorageType string    `json:"storage_type"`
	CategoryID  *uint     `json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListFilesResponse is the success body of GET /files.
type ListFilesResponse struct {
	Files    []FileSummary `json:"files"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int64         `json:"total"`
}

// Serve handles any unrouted GET by treating the path as a file locator.
// Resolution misses become 404; a stored locator living under a different
// path becomes a redirect.
func (h *Handlers) Serve(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Request.URL.Path)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		middleware.LoggerFrom(c).Error().Err(err).Str("path", c.Request.URL.Path).Msg("resolve failed")
		fail(c, http.StatusBadGateway, ErrCodeInternal, "storage backend unavailable")
		return
	}

	if res.RedirectURL != "" {
		c.Redirect(http.StatusFound, res.RedirectURL)
		return
	}
	defer res.Body.Close()

	c.Header("Content-Type", res.ContentType)
	if res.CacheControl != "" {
		c.Header("Cache-Control", res.CacheControl)
	}
	name := path.Base(c.Request.URL.Path)
	if res.Inline {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	} else {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, res.Body); err != nil {
		// Headers are out; nothing to do but log the broken stream.
		middleware.LoggerFrom(c).Warn().Err(err).Str("path", c.Request.URL.Path).Msg("stream aborted")
	}
}

// ListFiles handles GET /files.
func (h *Handlers) ListFiles(c *gin.Context) {
	page, pageSize := utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), 20),
		maxPageSize,
	)

	var categoryID *uint
	if name := strings.TrimSpace(c.Query("category")); name != "" {
		cat, err := h.categories.GetByName(c.Request.Context(), name)
		if err != nil {
			failFromService(c, err, ErrCodeListFailed)
			return
		}
		categoryID = &cat.ID
	}

	recs, total, err := h.files.ListPage(c.Request.Context(), categoryID, page, pageSize)
	if err != nil {
		failFromService(c, err, ErrCodeListFailed)
		return
	}

	out := make([]FileSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, FileSummary{
			ID:          r.ID,
			URL:         r.URL,
			FileName:    r.FileName,
			FileSize:    r.FileSize,
			MimeType:    r.MimeType,
			StorageType: string(r.StorageType),
			CategoryID:  r.CategoryID,
			CreatedAt:   r.CreatedAt,
		})
	}
	ok(c, http.StatusOK, ListFilesResponse{Files: out, Page: page, PageSize: pageSize, Total: total})
}

// updateSuffixRequest is the body of POST /update-suffix.
type updateSuffixRequest struct {
	URL    string `json:"url" binding:"required"`
	Suffix string `json:"suffix" binding:"required"`
}

// UpdateSuffix handles POST /update-suffix.
func (h *Handlers) UpdateSuffix(c *gin.Context) {
	var req updateSuffixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url and suffix are required")
		return
	}

	rec, err := h.files.UpdateSuffix(c.Request.Context(), req.URL, req.Suffix)
	if err != nil {
		failFromService(c, err, ErrCodeRenameFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok", "url": rec.URL})
}

// deleteRequest is the body of POST /delete.
type deleteRequest struct {
	ID uint `json:"id" binding:"required"`
}

// Delete handles POST /delete.
func (h *Handlers) Delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id is required")
		return
	}

	if err := h.files.Delete(c.Request.Context(), req.ID); err != nil {
		failFromService(c, err, ErrCodeDeleteFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// deleteMultipleRequest is the body of POST /delete-multiple.
type deleteMultipleRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// DeleteMultiple handles POST /delete-multiple. Entries are attempted
// independently; the response reports the removed count and the urls that
// could not be removed.
func (h *Handlers) DeleteMultiple(c *gin.Context) {
	var req deleteMultipleRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "urls must be a non-empty array")
		return
	}

	deleted, failed := h.files.DeleteByURLs(c.Request.Context(), req.URLs)
	ok(c, http.StatusOK, gin.H{"status": "ok", "deleted": deleted, "failed": failed})
}
