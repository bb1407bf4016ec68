// Upload endpoint.
//
//   - POST /upload  (multipart form: file, optional category, storage_type)
//
// The multipart part is read fully into memory; the size cap is enforced
// both at the transport layer (MaxBytesReader on the router) and again in
// the service so the limit holds for every ingress path.
package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/services"
)

// UploadResponse is the success body of POST /upload.
type UploadResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	ID     uint   `json:"id"`
}

// Upload handles POST /upload.
func (h *Handlers) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing multipart field \"file\"")
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file exceeds upload size limit")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable multipart file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable multipart file")
		return
	}

	storageOverride := domain.StorageType(strings.TrimSpace(c.PostForm("storage_type")))
	if s := string(storageOverride); s != "" && !storageOverride.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "storage_type must be \"object\" or \"relay\"")
		return
	}

	rec, err := h.uploads.Upload(c.Request.Context(), services.UploadInput{
		Data:            data,
		FileName:        fh.Filename,
		MimeType:        fh.Header.Get("Content-Type"),
		CategoryName:    strings.TrimSpace(c.PostForm("category")),
		StorageOverride: storageOverride,
	})
	if err != nil {
		failFromService(c, err, ErrCodeUploadFailed)
		return
	}

	ok(c, http.StatusOK, UploadResponse{Status: "ok", URL: rec.URL, ID: rec.ID})
}
