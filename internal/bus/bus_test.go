package bus

import (
	"testing"
	"time"
)

func TestChatTopicOrdersPair(t *testing.T) {
	if ChatTopic(5, 2) != ChatTopic(2, 5) {
		t.Errorf("ChatTopic must be identical for both permutations")
	}
	if got, want := ChatTopic(5, 2), "chat:2:5"; got != want {
		t.Errorf("ChatTopic = %q, want %q", got, want)
	}
}

func TestForUserMatcher(t *testing.T) {
	match := ForUser(7)

	tests := []struct {
		topic string
		want  bool
	}{
		{TopicPresence, true},
		{"chat:3:7", true},
		{"chat:7:12", true},
		{"chat:3:5", false},
		{"chat:70:71", false},
		{"chat:garbage", false},
		{"mail:7", false},
	}

	for _, tt := range tests {
		if got := match(tt.topic); got != tt.want {
			t.Errorf("ForUser(7)(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	b := New()
	alice := b.Subscribe(ForUser(1))
	carol := b.Subscribe(ForUser(3))

	b.Publish(ChatTopic(1, 2), "message")

	select {
	case ev := <-alice.C:
		if ev.Topic != "chat:1:2" || ev.Kind != "message" {
			t.Errorf("event = %+v, want chat:1:2/message", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("matching subscriber received nothing")
	}

	select {
	case ev := <-carol.C:
		t.Errorf("non-matching subscriber received %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe(Exact(TopicPresence))

	b.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Errorf("channel should be closed after Unsubscribe")
	}

	// Publishing after teardown must not panic or error.
	b.Publish(TopicPresence, "heartbeat")

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub)

	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(Exact(TopicPresence))

	// Overflow the buffer without draining; Publish must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*3; i++ {
			b.Publish(TopicPresence, "heartbeat")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}

	// The buffered events are still readable.
	if len(sub.C) != subscriptionBuffer {
		t.Errorf("buffered events = %d, want %d", len(sub.C), subscriptionBuffer)
	}
}
