package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/services"
	"github.com/filedock/go-file-backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- fakes ----

type fakeUploader struct {
	gotInput services.UploadInput
	rec      *domain.FileRecord
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, in services.UploadInput) (*domain.FileRecord, error) {
	f.gotInput = in
	return f.rec, f.err
}

type fakeFiles struct {
	suffixRec  *domain.FileRecord
	suffixErr  error
	deleteErr  error
	deletedIDs []uint
	bulkOK     int
	bulkFailed []string
	listRecs   []domain.FileRecord
	listTotal  int64
}

func (f *fakeFiles) UpdateSuffix(_ context.Context, url, suffix string) (*domain.FileRecord, error) {
	return f.suffixRec, f.suffixErr
}

func (f *fakeFiles) Delete(_ context.Context, id uint) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeFiles) DeleteByURLs(_ context.Context, urls []string) (int, []string) {
	return f.bulkOK, f.bulkFailed
}

func (f *fakeFiles) ListPage(_ context.Context, _ *uint, _, _ int) ([]domain.FileRecord, int64, error) {
	return f.listRecs, f.listTotal, nil
}

type fakeCategories struct {
	created   *domain.Category
	createErr error
	deleteErr error
	byName    *domain.Category
	byNameErr error
	list      []domain.Category
}

func (f *fakeCategories) Create(_ context.Context, name string) (*domain.Category, error) {
	return f.created, f.createErr
}

func (f *fakeCategories) GetByName(_ context.Context, name string) (*domain.Category, error) {
	return f.byName, f.byNameErr
}

func (f *fakeCategories) List(_ context.Context) ([]domain.Category, error) {
	return f.list, nil
}

func (f *fakeCategories) Delete(_ context.Context, id uint) error {
	return f.deleteErr
}

type fakeResolver struct {
	res *storage.Resolution
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*storage.Resolution, error) {
	return f.res, f.err
}

type fakeEngine struct {
	got chan *models.Update
}

func (f *fakeEngine) HandleUpdate(_ context.Context, upd *models.Update) {
	f.got <- upd
}

// ---- helpers ----

func newTestRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/upload", h.Upload)
	r.GET("/files", h.ListFiles)
	r.POST("/update-suffix", h.UpdateSuffix)
	r.POST("/delete", h.Delete)
	r.POST("/delete-multiple", h.DeleteMultiple)
	r.GET("/categories", h.ListCategories)
	r.POST("/create-category", h.CreateCategory)
	r.POST("/delete-category", h.DeleteCategory)
	r.POST("/webhook", h.Webhook)
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			h.Serve(c)
			return
		}
		c.Status(http.StatusNotFound)
	})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// ---- upload ----

func multipartBody(t *testing.T, fields map[string]string, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(fileData); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	up := &fakeUploader{rec: &domain.FileRecord{ID: 7, URL: "http://x/1700.txt"}}
	h := New(up, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	body, ct := multipartBody(t, map[string]string{
		"category":     "docs",
		"storage_type": "relay",
	}, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	decodeBody(t, w, &resp)
	if resp.Status != "ok" || resp.URL != "http://x/1700.txt" || resp.ID != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if up.gotInput.FileName != "notes.txt" || string(up.gotInput.Data) != "hello" {
		t.Fatalf("upload input mangled: %+v", up.gotInput)
	}
	if up.gotInput.CategoryName != "docs" || up.gotInput.StorageOverride != domain.StorageRelay {
		t.Fatalf("form fields not forwarded: %+v", up.gotInput)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/upload", "{}")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeBadRequest {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

func TestUpload_BadStorageType(t *testing.T) {
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	body, ct := multipartBody(t, map[string]string{"storage_type": "tape"}, "a.bin", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpload_TooLargeMapsTo413(t *testing.T) {
	up := &fakeUploader{err: services.ErrUploadTooLarge}
	h := New(up, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	body, ct := multipartBody(t, nil, "a.bin", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUpload_UpstreamFailureMapsTo502(t *testing.T) {
	up := &fakeUploader{err: domain.Ef(domain.KindUpstream, "both backends down")}
	h := New(up, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	body, ct := multipartBody(t, nil, "a.bin", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeInternal {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

// ---- file serving ----

func TestServe_StreamsBody(t *testing.T) {
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{
		res: &storage.Resolution{
			Body:         io.NopCloser(strings.NewReader("png bytes")),
			ContentType:  "image/png",
			CacheControl: "public, max-age=31536000, immutable",
			Inline:       true,
		},
	}, nil, 1<<20)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/1700.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "png bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Fatalf("cache control = %q", cc)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Fatalf("disposition = %q", cd)
	}
}

func TestServe_Redirect(t *testing.T) {
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{
		res: &storage.Resolution{RedirectURL: "http://x/renamed.png"},
	}, nil, 1<<20)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/old.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "http://x/renamed.png" {
		t.Fatalf("location = %q", loc)
	}
}

func TestServe_NotFound(t *testing.T) {
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{
		err: domain.Ef(domain.KindNotFound, "nope"),
	}, nil, 1<<20)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/missing.bin", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---- mutations ----

func TestUpdateSuffix(t *testing.T) {
	files := &fakeFiles{suffixRec: &domain.FileRecord{URL: "http://x/new.jpg"}}
	h := New(&fakeUploader{}, files, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/update-suffix", `{"url":"http://x/old.jpg","suffix":"new"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/update-suffix", `{"url":"http://x/old.jpg"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing suffix must be rejected, status = %d", w.Code)
	}

	files.suffixErr = services.ErrFileNotFound
	w = doJSON(t, r, http.MethodPost, "/update-suffix", `{"url":"http://x/ghost.jpg","suffix":"s"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeleteEndpoints(t *testing.T) {
	files := &fakeFiles{bulkOK: 2, bulkFailed: []string{"http://x/ghost"}}
	h := New(&fakeUploader{}, files, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/delete", `{"id":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(files.deletedIDs) != 1 || files.deletedIDs[0] != 5 {
		t.Fatalf("delete id not forwarded: %v", files.deletedIDs)
	}

	w = doJSON(t, r, http.MethodPost, "/delete-multiple", `{"urls":["a","b","http://x/ghost"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("bulk delete status = %d", w.Code)
	}
	var resp struct {
		Deleted int      `json:"deleted"`
		Failed  []string `json:"failed"`
	}
	decodeBody(t, w, &resp)
	if resp.Deleted != 2 || len(resp.Failed) != 1 {
		t.Fatalf("unexpected bulk result: %+v", resp)
	}

	w = doJSON(t, r, http.MethodPost, "/delete-multiple", `{"urls":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty url list must be rejected, status = %d", w.Code)
	}
}

// ---- categories ----

func TestCreateCategory(t *testing.T) {
	cats := &fakeCategories{created: &domain.Category{ID: 3, Name: "docs", CreatedAt: time.Now().UTC()}}
	h := New(&fakeUploader{}, &fakeFiles{}, cats, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/create-category", `{"name":"docs"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	cats.createErr = services.ErrCategoryExists
	w = doJSON(t, r, http.MethodPost, "/create-category", `{"name":"docs"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate must be 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/create-category", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing name must be 400, got %d", w.Code)
	}
}

func TestDeleteCategory(t *testing.T) {
	cats := &fakeCategories{}
	h := New(&fakeUploader{}, &fakeFiles{}, cats, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/delete-category", `{"id":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	cats.deleteErr = services.ErrCategoryNotFound
	w = doJSON(t, r, http.MethodPost, "/delete-category", `{"id":99}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---- webhook ----

func TestWebhook_AlwaysAcksAndProcessesAsync(t *testing.T) {
	eng := &fakeEngine{got: make(chan *models.Update, 1)}
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, eng, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/webhook",
		`{"update_id":1,"message":{"message_id":2,"chat":{"id":42},"text":"/start"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook must ack 200, got %d", w.Code)
	}
	if w.Body.String() != "received" {
		t.Fatalf("body = %q", w.Body.String())
	}

	select {
	case upd := <-eng.got:
		if upd.Message == nil || upd.Message.Chat.ID != 42 {
			t.Fatalf("update mangled: %+v", upd)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine never received the update")
	}
}

func TestWebhook_MalformedBodyStill200(t *testing.T) {
	eng := &fakeEngine{got: make(chan *models.Update, 1)}
	h := New(&fakeUploader{}, &fakeFiles{}, &fakeCategories{}, &fakeResolver{}, eng, 1<<20)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/webhook", `{not json`)
	if w.Code != http.StatusOK {
		t.Fatalf("malformed body must still ack 200, got %d", w.Code)
	}
	select {
	case <-eng.got:
		t.Fatalf("malformed update must be dropped, not processed")
	case <-time.After(50 * time.Millisecond):
	}
}

// ---- listing ----

func TestListFiles(t *testing.T) {
	files := &fakeFiles{
		listRecs: []domain.FileRecord{{
			ID: 1, URL: "http://x/a.png", FileName: "a.png",
			StorageType: domain.StorageObject, CreatedAt: time.Now().UTC(),
		}},
		listTotal: 1,
	}
	h := New(&fakeUploader{}, files, &fakeCategories{}, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/files?page=1&page_size=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp ListFilesResponse
	decodeBody(t, w, &resp)
	if resp.Total != 1 || len(resp.Files) != 1 || resp.Files[0].URL != "http://x/a.png" {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestListFiles_UnknownCategory(t *testing.T) {
	cats := &fakeCategories{byNameErr: services.ErrCategoryNotFound}
	h := New(&fakeUploader{}, &fakeFiles{}, cats, &fakeResolver{}, nil, 1<<20)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/files?category=ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
