package repository

import (
	"time"

	"github.com/campuslink/comms-backend/internal/models"
	"gorm.io/gorm"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

// FindConversation returns the latest messages of the pair in chronological
// order. Ties on created_at break on id, which is server-assigned and
// monotonic, so repeated calls never reorder. A non-zero beforeID restricts
// the page to messages older than that id, which is how callers walk back
// through a long conversation.
func (r *ChatMessageRepository) FindConversation(userID1, userID2 uint, limit int, beforeID uint) ([]models.ChatMessage, error) {
	query := r.db.
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID1, userID2, userID2, userID1)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}

	var messages []models.ChatMessage
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, err
}

// MarkConversationRead stamps every unread message addressed to the viewer
// in the conversation. The is_read guard makes concurrent duplicate calls
// a no-op instead of re-stamping read_at.
func (r *ChatMessageRepository) MarkConversationRead(viewerID, peerID uint, at time.Time) (int64, error) {
	res := r.db.Model(&models.ChatMessage{}).
		Where("recipient_id = ? AND sender_id = ? AND is_read = ?", viewerID, peerID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *ChatMessageRepository) CountUnread(viewerID, peerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).
		Where("recipient_id = ? AND sender_id = ? AND is_read = ?", viewerID, peerID, false).
		Count(&count).Error
	return count, err
}
