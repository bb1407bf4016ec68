package services

// Shared test fixtures: a throwaway SQLite database and in-memory fakes of
// the two blob backends.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/storage"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.AutoMigrate(&domain.Category{}, &domain.UserSetting{}, &domain.FileRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type memObjects struct {
	mu      sync.Mutex
	data    map[string][]byte
	types   map[string]string
	failPut bool
	deleted []string
}

func newMemObjects() *memObjects {
	return &memObjects{data: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return domain.Ef(domain.KindUpstream, "bucket unavailable")
	}
	m.data[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, "", domain.Ef(domain.KindNotFound, "no object %q", key)
	}
	return io.NopCloser(bytes.NewReader(d)), m.types[key], nil
}

func (m *memObjects) Copy(_ context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[srcKey]
	if !ok {
		return domain.Ef(domain.KindNotFound, "no object %q", srcKey)
	}
	m.data[dstKey] = append([]byte(nil), d...)
	m.types[dstKey] = m.types[srcKey]
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.types, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type memRelay struct {
	mu       sync.Mutex
	nextID   int
	sent     map[string][]byte
	deleted  []int
	failSend bool
}

func newMemRelay() *memRelay {
	return &memRelay{sent: map[string][]byte{}}
}

func (m *memRelay) Send(_ context.Context, data []byte, _ string, _ storage.MediaClass) (storage.RelayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return storage.RelayResult{}, domain.Ef(domain.KindUpstream, "relay unavailable")
	}
	m.nextID++
	ref := fmt.Sprintf("att-%d", m.nextID)
	m.sent[ref] = append([]byte(nil), data...)
	return storage.RelayResult{AttachmentRef: ref, MessageID: m.nextID}, nil
}

func (m *memRelay) ResolveURL(_ context.Context, ref string) (string, error) {
	return "https://relay.example/" + ref, nil
}

func (m *memRelay) DeleteMessage(_ context.Context, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}
