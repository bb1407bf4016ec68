// Category endpoints.
//
//   - POST /create-category  {"name": ...}
//   - POST /delete-category  {"id": ...}
//   - GET  /categories
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CategoryView is the JSON shape of a category.
type CategoryView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateCategory handles POST /create-category. Duplicate names return 409
// so at-least-once webhook redelivery stays harmless for API callers too.
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	cat, err := h.categories.Create(c.Request.Context(), req.Name)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, CategoryView{ID: cat.ID, Name: cat.Name, CreatedAt: cat.CreatedAt})
}

type deleteCategoryRequest struct {
	ID uint `json:"id" binding:"required"`
}

// DeleteCategory handles POST /delete-category. Files referencing the
// category are kept and simply lose the reference.
func (h *Handlers) DeleteCategory(c *gin.Context) {
	var req deleteCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id is required")
		return
	}

	if err := h.categories.Delete(c.Request.Context(), req.ID); err != nil {
		failFromService(c, err, ErrCodeDeleteFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// ListCategories handles GET /categories.
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context())
	if err != nil {
		failFromService(c, err, ErrCodeListFailed)
		return
	}
	out := make([]CategoryView, 0, len(cats))
	for _, cat := range cats {
		out = append(out, CategoryView{ID: cat.ID, Name: cat.Name, CreatedAt: cat.CreatedAt})
	}
	ok(c, http.StatusOK, gin.H{"categories": out})
}
