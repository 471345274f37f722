package ws

import (
	"testing"

	"github.com/hearthbid/hearthbid-backend/internal/domain"
)

func TestPublishReachesProjectListeners(t *testing.T) {
	hub := NewHub(nil)
	hub.Run()
	defer hub.Stop()

	var got []*domain.Message
	unsubscribe := hub.SubscribeMessages("p1", func(msg *domain.Message) {
		got = append(got, msg)
	})
	defer unsubscribe()

	var other []*domain.Message
	otherUnsub := hub.SubscribeMessages("p2", func(msg *domain.Message) {
		other = append(other, msg)
	})
	defer otherUnsub()

	msg := &domain.Message{ID: "m1", ProjectID: "p1", SenderID: "cx", MessageType: domain.MessageTypeGroup, Content: "hello"}
	hub.PublishMessage("p1", msg)

	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("p1 listener got %v, want [m1]", got)
	}
	if len(other) != 0 {
		t.Errorf("p2 listener must not receive p1 events, got %v", other)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	var count int
	unsubscribe := hub.SubscribeMessages("p1", func(*domain.Message) {
		count++
	})

	hub.PublishMessage("p1", &domain.Message{ID: "m1", ProjectID: "p1"})
	unsubscribe()
	hub.PublishMessage("p1", &domain.Message{ID: "m2", ProjectID: "p1"})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestMultipleListenersSameProject(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	var a, b int
	unsubA := hub.SubscribeMessages("p1", func(*domain.Message) { a++ })
	defer unsubA()
	unsubB := hub.SubscribeMessages("p1", func(*domain.Message) { b++ })
	defer unsubB()

	hub.PublishMessage("p1", &domain.Message{ID: "m1", ProjectID: "p1"})

	if a != 1 || b != 1 {
		t.Errorf("both listeners should receive the event, got a=%d b=%d", a, b)
	}
}
