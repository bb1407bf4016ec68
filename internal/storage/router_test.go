package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/filedock/go-file-backend/internal/domain"
)

// fakeObjectStore is an in-memory ObjectStore. failPut simulates an
// unreachable bucket.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return domain.Ef(domain.KindUpstream, "bucket unavailable")
	}
	f.objects[key] = append([]byte(nil), data...)
	f.types[key] = contentType
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", domain.Ef(domain.KindNotFound, "no object %q", key)
	}
	return io.NopCloser(bytes.NewReader(data)), f.types[key], nil
}

func (f *fakeObjectStore) Copy(_ context.Context, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[srcKey]
	if !ok {
		return domain.Ef(domain.KindNotFound, "no object %q", srcKey)
	}
	f.objects[dstKey] = append([]byte(nil), data...)
	f.types[dstKey] = f.types[srcKey]
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	delete(f.types, key)
	return nil
}

// fakeRelay records sends and hands out sequential attachment refs.
type fakeRelay struct {
	mu       sync.Mutex
	sent     map[string][]byte // ref -> data
	urls     map[string]string // ref -> transient url
	deleted  []int
	nextID   int
	failSend bool
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{sent: map[string][]byte{}, urls: map[string]string{}}
}

func (f *fakeRelay) Send(_ context.Context, data []byte, _ string, _ MediaClass) (RelayResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return RelayResult{}, domain.Ef(domain.KindUpstream, "relay unavailable")
	}
	f.nextID++
	ref := "ref-" + string(rune('a'+f.nextID))
	f.sent[ref] = append([]byte(nil), data...)
	return RelayResult{AttachmentRef: ref, MessageID: f.nextID}, nil
}

func (f *fakeRelay) ResolveURL(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[ref]
	if !ok {
		return "", domain.Ef(domain.KindUpstream, "unknown ref %q", ref)
	}
	return u, nil
}

func (f *fakeRelay) DeleteMessage(_ context.Context, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func TestRouterStore_ObjectPreferred(t *testing.T) {
	objects := newFakeObjectStore()
	relay := newFakeRelay()
	r := &Router{Objects: objects, Relay: relay, BaseURL: "http://x", Log: zerolog.Nop()}

	suffix := "report"
	res, err := r.Store(context.Background(), StoreInput{
		Data:         []byte("pdf bytes"),
		FileName:     "report.pdf",
		MimeType:     "application/pdf",
		Preference:   domain.StorageObject,
		CustomSuffix: &suffix,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.StorageType != domain.StorageObject {
		t.Fatalf("expected object backend, got %q", res.StorageType)
	}
	if res.BlobRef != "report.pdf" || res.URL != "http://x/report.pdf" {
		t.Fatalf("unexpected locator: %+v", res)
	}
	if res.RelayMessageID != 0 {
		t.Fatalf("object blob must keep the 0 message-id sentinel: %+v", res)
	}
	if _, ok := objects.objects["report.pdf"]; !ok {
		t.Fatalf("object bytes not written")
	}
	if len(relay.sent) != 0 {
		t.Fatalf("relay must not be touched on object success")
	}
}

func TestRouterStore_FallsBackToRelayOnObjectFailure(t *testing.T) {
	objects := newFakeObjectStore()
	objects.failPut = true
	relay := newFakeRelay()
	r := &Router{Objects: objects, Relay: relay, BaseURL: "http://x", Log: zerolog.Nop()}

	res, err := r.Store(context.Background(), StoreInput{
		Data:       []byte("photo"),
		FileName:   "photo.jpg",
		MimeType:   "image/jpeg",
		Preference: domain.StorageObject,
	})
	if err != nil {
		t.Fatalf("Store must succeed via fallback: %v", err)
	}
	if res.StorageType != domain.StorageRelay {
		t.Fatalf("expected relay fallback, got %q", res.StorageType)
	}
	if res.RelayMessageID == 0 || res.BlobRef == "" {
		t.Fatalf("relay result incomplete: %+v", res)
	}
	if len(relay.sent) != 1 {
		t.Fatalf("blob did not reach the relay")
	}
}

func TestRouterStore_RelayPreferred(t *testing.T) {
	objects := newFakeObjectStore()
	relay := newFakeRelay()
	r := &Router{Objects: objects, Relay: relay, BaseURL: "http://x", Log: zerolog.Nop()}

	res, err := r.Store(context.Background(), StoreInput{
		Data:       []byte("doc"),
		FileName:   "doc.txt",
		MimeType:   "text/plain",
		Preference: domain.StorageRelay,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.StorageType != domain.StorageRelay {
		t.Fatalf("expected relay, got %q", res.StorageType)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("object backend must not be touched for relay preference")
	}
}

func TestRouterStore_RelayOnlyDeployment(t *testing.T) {
	relay := newFakeRelay()
	r := &Router{Objects: nil, Relay: relay, BaseURL: "http://x", Log: zerolog.Nop()}

	res, err := r.Store(context.Background(), StoreInput{
		Data:       []byte("doc"),
		FileName:   "doc.txt",
		MimeType:   "text/plain",
		Preference: domain.StorageObject, // preference cannot be honored
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.StorageType != domain.StorageRelay {
		t.Fatalf("nil object store must route to relay, got %q", res.StorageType)
	}
}

func TestRouterStore_BothBackendsDown(t *testing.T) {
	objects := newFakeObjectStore()
	objects.failPut = true
	relay := newFakeRelay()
	relay.failSend = true
	r := &Router{Objects: objects, Relay: relay, BaseURL: "http://x", Log: zerolog.Nop()}

	_, err := r.Store(context.Background(), StoreInput{
		Data:       []byte("x"),
		Preference: domain.StorageObject,
	})
	if err == nil {
		t.Fatalf("expected error when both backends fail")
	}
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
