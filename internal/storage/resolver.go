package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/filedock/go-file-backend/internal/domain"
)

// FileFinder is the metadata lookup surface the resolver needs. Each method
// reports a miss as an error so the resolver can fall through to the next
// strategy.
type FileFinder interface {
	ByURL(ctx context.Context, url string) (*domain.FileRecord, error)
	ByBlobRef(ctx context.Context, ref string) (*domain.FileRecord, error)
	ByFileName(ctx context.Context, name string) (*domain.FileRecord, error)
}

// Resolution is the outcome of a successful resolve. Exactly one of Body
// and RedirectURL is set.
type Resolution struct {
	Body         io.ReadCloser
	ContentType  string
	CacheControl string // empty means no cache directive
	Inline       bool   // Content-Disposition: inline
	RedirectURL  string
}

// cacheImmutable is applied to bytes served straight from the object
// backend: object keys are never rewritten in place, only copied.
const cacheImmutable = "public, max-age=31536000, immutable"

// Resolver reconstructs file bytes for a requested path, trying multiple
// lookup strategies in a fixed order.
type Resolver struct {
	Objects ObjectStore // nil when the deployment runs relay-only
	Relay   Relay
	Files   FileFinder
	BaseURL string
	// HTTPClient streams relay bytes; defaults to http.DefaultClient.
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// Resolve finds and streams the bytes behind requestedPath.
//
// Lookup order, each step tried only when the previous missed:
//  1. direct object-storage get with the raw path as key
//  2. metadata row by exact canonical url
//  3. metadata row by blob_ref
//  4. metadata row by file_name (last path segment)
//  5. dispatch by the row's storage_type
//  6. redirect to the row's stored url when it differs from the request
//  7. not found
func (r *Resolver) Resolve(ctx context.Context, requestedPath string) (*Resolution, error) {
	key := strings.TrimPrefix(requestedPath, "/")
	if key == "" {
		return nil, domain.Ef(domain.KindNotFound, "empty path")
	}

	// 1) Common case: the path segment is the object key itself.
	if r.Objects != nil {
		body, ct, err := r.Objects.Get(ctx, key)
		if err == nil {
			resolveHits.WithLabelValues("object_key").Inc()
			return r.objectResolution(body, ct, key), nil
		}
		if !domain.IsKind(err, domain.KindNotFound) {
			r.Log.Warn().Err(err).Str("key", key).Msg("direct object get failed, trying metadata")
		}
	}

	// 2-4) Metadata lookups.
	rec := r.findRecord(ctx, key)
	if rec == nil {
		return nil, domain.Ef(domain.KindNotFound, "no file matches %q", key)
	}

	// 5) Dispatch by the backend the row was stored on.
	res, err := r.serveRecord(ctx, rec)
	if err == nil {
		return res, nil
	}
	r.Log.Warn().Err(err).Uint("file_id", rec.ID).Str("storage_type", string(rec.StorageType)).
		Msg("backend dispatch failed")

	// 6) Last resort: the stored locator may live under a different path
	// (e.g. renamed suffix) that a fresh request can still reach.
	if rec.URL != "" && rec.URL != LocatorFor(r.BaseURL, key) {
		resolveHits.WithLabelValues("redirect").Inc()
		return &Resolution{RedirectURL: rec.URL}, nil
	}

	// 7)
	return nil, domain.E(domain.KindNotFound, fmt.Sprintf("file %q unreachable on its backend", key), err)
}

// findRecord walks lookup steps 2-4.
func (r *Resolver) findRecord(ctx context.Context, key string) *domain.FileRecord {
	if rec, err := r.Files.ByURL(ctx, LocatorFor(r.BaseURL, key)); err == nil {
		resolveHits.WithLabelValues("url").Inc()
		return rec
	}
	if rec, err := r.Files.ByBlobRef(ctx, key); err == nil {
		resolveHits.WithLabelValues("blob_ref").Inc()
		return rec
	}
	if rec, err := r.Files.ByFileName(ctx, path.Base(key)); err == nil {
		resolveHits.WithLabelValues("file_name").Inc()
		return rec
	}
	return nil
}

// serveRecord streams a found record's bytes from its backend.
func (r *Resolver) serveRecord(ctx context.Context, rec *domain.FileRecord) (*Resolution, error) {
	switch rec.StorageType {
	case domain.StorageObject:
		if r.Objects == nil {
			return nil, domain.Ef(domain.KindUpstream, "object backend not configured")
		}
		body, ct, err := r.Objects.Get(ctx, rec.BlobRef)
		if err != nil {
			return nil, err
		}
		if ct == "" {
			ct = rec.MimeType
		}
		return r.objectResolution(body, ct, rec.BlobRef), nil

	case domain.StorageRelay:
		// The relay path expires: re-resolve on every request, never
		// cache the transient URL.
		transient, err := r.Relay.ResolveURL(ctx, rec.BlobRef)
		if err != nil {
			return nil, err
		}
		body, err := r.fetch(ctx, transient)
		if err != nil {
			return nil, err
		}
		ct := rec.MimeType
		if ct == "" {
			ct = contentTypeFor("", rec.FileName)
		}
		return &Resolution{
			Body:        body,
			ContentType: ct,
			Inline:      IsInlineMedia(ct),
		}, nil

	default:
		return nil, domain.Ef(domain.KindUpstream, "unknown storage type %q", rec.StorageType)
	}
}

// objectResolution wraps object-backend bytes with the immutable cache
// directive and a content type inferred from the key when none was stored.
func (r *Resolver) objectResolution(body io.ReadCloser, contentType, key string) *Resolution {
	ct := contentTypeFor(contentType, key)
	return &Resolution{
		Body:         body,
		ContentType:  ct,
		CacheControl: cacheImmutable,
		Inline:       IsInlineMedia(ct),
	}
}

// fetch streams the transient relay URL.
func (r *Resolver) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, "build relay fetch request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, "fetch relay bytes", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, domain.Ef(domain.KindUpstream, "relay fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// contentTypeFor picks the stored content type, then the extension-derived
// one, then the generic binary fallback.
func contentTypeFor(stored, name string) string {
	if stored != "" && stored != "application/octet-stream" {
		return stored
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if stored != "" {
		return stored
	}
	return "application/octet-stream"
}
