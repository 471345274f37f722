package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hearthbid/hearthbid-backend/internal/domain"
	pkglogger "github.com/hearthbid/hearthbid-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "project-messages"

// Hub fans message-insert events out to project-scoped listeners. Events
// published locally are also pushed through Redis pub/sub so every instance
// sees them; the origin instance receives its own event back, so local
// listeners can see the same event twice. Delivery is at-least-once by
// design — subscribers deduplicate.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[int64]func(*domain.Message)
	nextID    int64

	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		listeners:   make(map[string]map[int64]func(*domain.Message)),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the Redis subscriber if Redis is available
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// SubscribeMessages registers a listener for a project's message inserts.
// The returned function detaches the listener.
func (h *Hub) SubscribeMessages(projectID string, fn func(*domain.Message)) func() {
	h.mu.Lock()
	if h.listeners[projectID] == nil {
		h.listeners[projectID] = make(map[int64]func(*domain.Message))
	}
	h.nextID++
	id := h.nextID
	h.listeners[projectID][id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if fns, ok := h.listeners[projectID]; ok {
			delete(fns, id)
			if len(fns) == 0 {
				delete(h.listeners, projectID)
			}
		}
		h.mu.Unlock()
	}
}

// PublishMessage delivers a message event to local listeners and publishes
// it to Redis for other instances
func (h *Hub) PublishMessage(projectID string, msg *domain.Message) {
	h.deliverLocal(projectID, msg)

	if h.redisClient != nil {
		wire := &wireMessage{ProjectID: projectID, Message: msg}
		data, err := json.Marshal(wire)
		if err == nil {
			h.redisClient.Publish(h.ctx, redisPubSubChannel, data) //nolint:errcheck
		}
	}
}

func (h *Hub) deliverLocal(projectID string, msg *domain.Message) {
	h.mu.RLock()
	fns := make([]func(*domain.Message), 0, len(h.listeners[projectID]))
	for _, fn := range h.listeners[projectID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(msg)
	}
}

type wireMessage struct {
	ProjectID string          `json:"project_id"`
	Message   *domain.Message `json:"message"`
}

// subscribeRedis listens for message events from other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var wire wireMessage
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				pkglogger.GetLogger().Warn().Err(err).Msg("dropping malformed feed event")
				continue
			}
			// Only local delivery (don't re-publish to Redis)
			h.deliverLocal(wire.ProjectID, wire.Message)
		case <-h.ctx.Done():
			return
		}
	}
}
