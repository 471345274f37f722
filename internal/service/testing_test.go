package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/internal/repository"
	pkgcache "github.com/hearthbid/hearthbid-backend/pkg/cache"
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

// testEnv wires the full service stack over an in-memory store, feed, and cache
type testEnv struct {
	db        *gorm.DB
	feed      *memoryFeed
	store     *memoryObjectStore
	cache     *memoryCache
	aliases   AliasService
	messaging MessagingService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	feed := newMemoryFeed()
	store := newMemoryObjectStore()
	cache := newMemoryCache()

	memberRepo := repository.NewMemberRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	aliasRepo := repository.NewAliasRepository(db)
	messageRepo := repository.NewMessageRepository(db, store, feed)

	aliases := NewAliasService(aliasRepo, projectRepo, messageRepo, cache)
	messaging := NewMessagingService(messageRepo, aliases, memberRepo, projectRepo, cache)

	return &testEnv{
		db:        db,
		feed:      feed,
		store:     store,
		cache:     cache,
		aliases:   aliases,
		messaging: messaging,
	}
}

func (e *testEnv) addHomeownerProject(t *testing.T, projectID, ownerID string) {
	t.Helper()
	if err := e.db.Create(&domain.Member{ID: ownerID, DisplayName: "Helen Owner", Role: domain.RoleHomeowner}).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := e.db.Create(&domain.Project{ID: projectID, OwnerID: ownerID, Title: "Deck rebuild"}).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func (e *testEnv) addContractor(t *testing.T, contractorID, name string) {
	t.Helper()
	if err := e.db.Create(&domain.Member{ID: contractorID, DisplayName: name, Role: domain.RoleContractor}).Error; err != nil {
		t.Fatalf("seed contractor: %v", err)
	}
}

func (e *testEnv) addBid(t *testing.T, projectID, contractorID string, amount float64, at time.Time) {
	t.Helper()
	bid := &domain.Bid{
		ID:           fmt.Sprintf("bid-%s-%d", contractorID, at.UnixNano()),
		ProjectID:    projectID,
		ContractorID: contractorID,
		Amount:       amount,
		CreatedAt:    at,
	}
	if err := e.db.Create(bid).Error; err != nil {
		t.Fatalf("seed bid: %v", err)
	}
}

func (e *testEnv) recipientsOf(t *testing.T, messageID string) map[string]bool {
	t.Helper()
	var rows []domain.MessageRecipient
	if err := e.db.Where("message_id = ?", messageID).Find(&rows).Error; err != nil {
		t.Fatalf("load recipients: %v", err)
	}
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[r.RecipientID] = true
	}
	return set
}

// memoryObjectStore is an in-memory ObjectStore for service tests
type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  map[string]bool
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{
		objects: make(map[string][]byte),
		failOn:  make(map[string]bool),
	}
}

func (f *memoryObjectStore) Upload(_ context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

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
	return &storage.UploadResult{Key: key, URL: "https://cdn.test/" + key, ContentType: contentType, Size: size}, nil
}

func (f *memoryObjectStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

func (f *memoryObjectStore) ResolveURL(key string) string {
	return "https://cdn.test/" + key
}

// memoryCache is an in-memory pkg/cache.Service for cache-interaction tests
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	unread  map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[string][]byte),
		unread:  make(map[string]int64),
	}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return pkgcache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) GetParticipants(ctx context.Context, projectID string, dest interface{}) error {
	return c.Get(ctx, pkgcache.PrefixParticipants+projectID, dest)
}

func (c *memoryCache) SetParticipants(ctx context.Context, projectID string, data interface{}) error {
	return c.Set(ctx, pkgcache.PrefixParticipants+projectID, data, 0)
}

func (c *memoryCache) InvalidateParticipants(ctx context.Context, projectID string) error {
	return c.Delete(ctx, pkgcache.PrefixParticipants+projectID)
}

func (c *memoryCache) GetUnreadCount(_ context.Context, projectID, viewerID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, ok := c.unread[projectID+":"+viewerID]
	return count, ok
}

func (c *memoryCache) SetUnreadCount(_ context.Context, projectID, viewerID string, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread[projectID+":"+viewerID] = count
}

func (c *memoryCache) InvalidateUnread(_ context.Context, projectID string, viewerIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range viewerIDs {
		delete(c.unread, projectID+":"+v)
	}
	return nil
}

func (c *memoryCache) IsAvailable() bool { return true }

func (c *memoryCache) Ping(context.Context) error { return nil }

// memoryFeed is an in-memory MessageFeed; Redeliver replays a past event to
// simulate at-least-once delivery
type memoryFeed struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func(*domain.Message)
	published []*domain.Message
}

func newMemoryFeed() *memoryFeed {
	return &memoryFeed{listeners: make(map[string]map[int]func(*domain.Message))}
}

func (f *memoryFeed) PublishMessage(projectID string, msg *domain.Message) {
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	f.deliver(projectID, msg)
}

func (f *memoryFeed) Redeliver(projectID string, msg *domain.Message) {
	f.deliver(projectID, msg)
}

func (f *memoryFeed) deliver(projectID string, msg *domain.Message) {
	f.mu.Lock()
	fns := make([]func(*domain.Message), 0, len(f.listeners[projectID]))
	for _, fn := range f.listeners[projectID] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (f *memoryFeed) SubscribeMessages(projectID string, fn func(*domain.Message)) func() {
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
