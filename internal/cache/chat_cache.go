package cache

import (
	"fmt"
	"time"

	"github.com/campuslink/comms-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// ConversationTTL bounds how stale a cached history can get if an
// invalidation is lost.
const ConversationTTL = 5 * time.Minute

// ChatCache caches conversation histories. Entries are invalidated on
// every send and read transition, so cached pages match the store.
type ChatCache struct {
	redis *RedisCache
}

// NewChatCache creates a new chat history cache
func NewChatCache(redis *RedisCache) *ChatCache {
	return &ChatCache{redis: redis}
}

// conversationKey generates a cache key for a conversation
func conversationKey(userID1, userID2 uint) string {
	// Always use smaller ID first for consistency
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("conv:%d:%d", userID1, userID2)
}

// GetConversation retrieves cached conversation messages
func (cc *ChatCache) GetConversation(userID1, userID2 uint) ([]models.ChatMessage, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}
	data, err := cc.redis.Get(conversationKey(userID1, userID2))
	if err != nil || data == nil {
		return nil, false
	}

	var messages []models.ChatMessage
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}

	return messages, true
}

// SetConversation caches conversation messages
func (cc *ChatCache) SetConversation(userID1, userID2 uint, messages []models.ChatMessage) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}

	return cc.redis.Set(conversationKey(userID1, userID2), data, ConversationTTL)
}

// InvalidateConversation removes a conversation from cache
func (cc *ChatCache) InvalidateConversation(userID1, userID2 uint) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.Delete(conversationKey(userID1, userID2))
}
