// Package bus is the in-process change notification fan-out. Events are
// best-effort refresh signals keyed by topic; subscribers re-fetch
// authoritative state on receipt rather than trusting the event payload.
package bus

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TopicPresence carries every presence transition.
const TopicPresence = "presence"

// ChatTopic names the topic for one unordered pair of users.
func ChatTopic(userID1, userID2 uint) string {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("chat:%d:%d", userID1, userID2)
}

// Event is a refresh signal. Kind distinguishes what changed on the topic
// ("message", "read", "heartbeat", "offline"); consumers only use it to
// decide what to re-fetch.
type Event struct {
	Topic string    `json:"topic"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
}

// Matcher selects the topics a subscription receives.
type Matcher func(topic string) bool

// Exact matches a single topic.
func Exact(topic string) Matcher {
	return func(t string) bool { return t == topic }
}

// ForUser matches presence plus every chat pair topic involving userID.
func ForUser(userID uint) Matcher {
	return func(t string) bool {
		if t == TopicPresence {
			return true
		}
		rest, ok := strings.CutPrefix(t, "chat:")
		if !ok {
			return false
		}
		lo, hi, ok := strings.Cut(rest, ":")
		if !ok {
			return false
		}
		return lo == strconv.FormatUint(uint64(userID), 10) ||
			hi == strconv.FormatUint(uint64(userID), 10)
	}
}

// Subscription is one subscriber's event channel. C is closed on
// Unsubscribe; a torn-down subscriber stops receiving without error.
type Subscription struct {
	C     chan Event
	match Matcher
}

// Bus fans events out to current subscribers. Delivery is non-blocking: a
// subscriber that falls behind loses events, which is acceptable because
// events only say "re-fetch".
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

const subscriptionBuffer = 16

func (b *Bus) Subscribe(match Matcher) *Subscription {
	sub := &Subscription{
		C:     make(chan Event, subscriptionBuffer),
		match: match,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.C)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(topic, kind string) {
	ev := Event{Topic: topic, Kind: kind, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.match(topic) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			log.Printf("bus: dropping %s event on %s for slow subscriber", kind, topic)
		}
	}
}

// SubscriberCount is used by the health endpoint.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
