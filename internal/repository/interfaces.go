package repository

import (
	"time"

	"github.com/campuslink/comms-backend/internal/models"
)

// PresenceRepositoryInterface defines the contract for presence record operations
type PresenceRepositoryInterface interface {
	Upsert(userID uint, isOnline bool, at time.Time) error
	FindAll() ([]models.Presence, error)
	FindByUser(userID uint) (*models.Presence, error)
}

// ChatMessageRepositoryInterface defines the contract for direct chat operations
type ChatMessageRepositoryInterface interface {
	Create(message *models.ChatMessage) error
	FindConversation(userID1, userID2 uint, limit int, beforeID uint) ([]models.ChatMessage, error)
	MarkConversationRead(viewerID, peerID uint, at time.Time) (int64, error)
	CountUnread(viewerID, peerID uint) (int64, error)
}

// MailMessageRepositoryInterface defines the contract for mailbox operations
type MailMessageRepositoryInterface interface {
	Create(message *models.MailMessage) error
	FindByID(id uint) (*models.MailMessage, error)
	Inbox(userID uint) ([]models.MailMessage, error)
	Sent(userID uint) ([]models.MailMessage, error)
	MarkRead(id uint, at time.Time) error
	SetStarred(id uint, starred bool) error
	MarkDeletedBySender(id uint) error
	MarkDeletedByRecipient(id uint) error
	FindPurgeable(limit int) ([]models.MailMessage, error)
	Purge(id uint) error
}
