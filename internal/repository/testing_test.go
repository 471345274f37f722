package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/pkg/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Single connection keeps concurrent test writes serialized
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&domain.Member{},
		&domain.Project{},
		&domain.Bid{},
		&domain.ContractorAlias{},
		&domain.Message{},
		&domain.MessageRecipient{},
		&domain.MessageAttachment{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// fakeObjectStore is an in-memory ObjectStore; file names listed in failOn
// fail their upload
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  map[string]bool
	uploads int
	deletes int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		failOn:  make(map[string]bool),
	}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++

	for name := range f.failOn {
		if strings.HasSuffix(key, "/"+name) {
			return nil, errors.New("upload rejected")
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &storage.UploadResult{
		Key:         key,
		URL:         f.url(key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes += len(keys)
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

func (f *fakeObjectStore) ResolveURL(key string) string {
	return f.url(key)
}

func (f *fakeObjectStore) url(key string) string {
	return fmt.Sprintf("https://cdn.test/%s", key)
}

// fakeFeed is an in-memory MessageFeed with manual redelivery support
type fakeFeed struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func(*domain.Message)
	published []*domain.Message
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{listeners: make(map[string]map[int]func(*domain.Message))}
}

func (f *fakeFeed) PublishMessage(projectID string, msg *domain.Message) {
	f.mu.Lock()
	f.published = append(f.published, msg)
	fns := make([]func(*domain.Message), 0, len(f.listeners[projectID]))
	for _, fn := range f.listeners[projectID] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (f *fakeFeed) SubscribeMessages(projectID string, fn func(*domain.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listeners[projectID] == nil {
		f.listeners[projectID] = make(map[int]func(*domain.Message))
	}
	f.nextID++
	id := f.nextID
	f.listeners[projectID][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners[projectID], id)
	}
}
