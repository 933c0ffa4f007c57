package models

import (
	"time"
)

// ChatMessage is one message in a pairwise conversation. Rows are immutable
// after creation except for the read transition, which flips exactly once
// from (false, nil) to (true, now). There is no delete affordance.
type ChatMessage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	SenderID    uint `gorm:"not null;index:idx_chat_pair" json:"sender_id"`
	RecipientID uint `gorm:"not null;index:idx_chat_pair" json:"recipient_id"`

	Body string `gorm:"type:text;not null" json:"body"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

type ChatMessageResponse struct {
	ID          uint       `json:"id"`
	SenderID    uint       `json:"sender_id"`
	RecipientID uint       `json:"recipient_id"`
	Body        string     `json:"body"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (m *ChatMessage) ToResponse() ChatMessageResponse {
	return ChatMessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}
