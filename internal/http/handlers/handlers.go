// Handler wiring.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Dependencies enter
// through small interfaces so transport stays decoupled from business
// logic and tests can swap fakes in.
package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/services"
	"github.com/filedock/go-file-backend/internal/storage"
)

// Uploader stores one inbound upload and returns its metadata row.
type Uploader interface {
	Upload(ctx context.Context, in services.UploadInput) (*domain.FileRecord, error)
}

// FileManager covers mutations and listing of stored files.
type FileManager interface {
	UpdateSuffix(ctx context.Context, url, suffix string) (*domain.FileRecord, error)
	Delete(ctx context.Context, id uint) error
	DeleteByURLs(ctx context.Context, urls []string) (int, []string)
	ListPage(ctx context.Context, categoryID *uint, page, pageSize int) ([]domain.FileRecord, int64, error)
}

// CategoryManager covers category CRUD.
type CategoryManager interface {
	Create(ctx context.Context, name string) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Delete(ctx context.Context, id uint) error
}

// PathResolver reconstructs file bytes for a requested path.
type PathResolver interface {
	Resolve(ctx context.Context, requestedPath string) (*storage.Resolution, error)
}

// UpdateEngine consumes one messaging-platform update. Implementations
// must never panic and must swallow their own errors.
type UpdateEngine interface {
	HandleUpdate(ctx context.Context, upd *models.Update)
}

// Handlers groups the HTTP endpoints of the service.
type Handlers struct {
	uploads    Uploader
	files      FileManager
	categories CategoryManager
	resolver   PathResolver
	engine     UpdateEngine

	maxUploadBytes int64
}

// New constructs a Handlers instance bound to the given services. engine
// may be nil when the webhook endpoint is not mounted.
func New(uploads Uploader, files FileManager, categories CategoryManager, resolver PathResolver, engine UpdateEngine, maxUploadBytes int64) *Handlers {
	return &Handlers{
		uploads:        uploads,
		files:          files,
		categories:     categories,
		resolver:       resolver,
		engine:         engine,
		maxUploadBytes: maxUploadBytes,
	}
}
