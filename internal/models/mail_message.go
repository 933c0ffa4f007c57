package models

import (
	"time"
)

// MailMessage is one mailbox item. Visibility is per party: each side sees
// the message in their folder iff their own deletion flag is false. The row
// is kept while at least one flag is false; once both are true it becomes
// eligible for physical purge.
//
// The star is a single shared flag, so either party toggling it affects
// what the other sees. That mirrors the portal's original behavior.
type MailMessage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	SenderID    uint `gorm:"not null;index" json:"sender_id"`
	RecipientID uint `gorm:"not null;index" json:"recipient_id"`

	Subject string `gorm:"type:varchar(200);not null" json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`

	IsRead    bool       `gorm:"default:false" json:"is_read"`
	ReadAt    *time.Time `json:"read_at"`
	IsStarred bool       `gorm:"default:false" json:"is_starred"`

	DeletedBySender    bool `gorm:"default:false" json:"-"`
	DeletedByRecipient bool `gorm:"default:false" json:"-"`

	// Attachment value columns; zero AttachmentRef means no attachment.
	// The blob itself lives in the external store under AttachmentRef.
	AttachmentRef  string `gorm:"type:varchar(255)" json:"-"`
	AttachmentName string `gorm:"type:varchar(255)" json:"-"`
	AttachmentSize int64  `json:"-"`
}

func (m *MailMessage) HasAttachment() bool {
	return m.AttachmentRef != ""
}

// VisibleTo reports whether userID still sees this message in any folder.
func (m *MailMessage) VisibleTo(userID uint) bool {
	switch userID {
	case m.SenderID:
		return !m.DeletedBySender
	case m.RecipientID:
		return !m.DeletedByRecipient
	default:
		return false
	}
}

// IsParticipant reports whether userID is sender or recipient.
func (m *MailMessage) IsParticipant(userID uint) bool {
	return userID == m.SenderID || userID == m.RecipientID
}

type AttachmentResponse struct {
	DisplayName string `json:"display_name"`
	ByteSize    int64  `json:"byte_size"`
}

type MailMessageResponse struct {
	ID          uint                `json:"id"`
	SenderID    uint                `json:"sender_id"`
	RecipientID uint                `json:"recipient_id"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	IsRead      bool                `json:"is_read"`
	ReadAt      *time.Time          `json:"read_at"`
	IsStarred   bool                `json:"is_starred"`
	Attachment  *AttachmentResponse `json:"attachment"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (m *MailMessage) ToResponse() MailMessageResponse {
	resp := MailMessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Subject:     m.Subject,
		Body:        m.Body,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		IsStarred:   m.IsStarred,
		CreatedAt:   m.CreatedAt,
	}
	if m.HasAttachment() {
		resp.Attachment = &AttachmentResponse{
			DisplayName: m.AttachmentName,
			ByteSize:    m.AttachmentSize,
		}
	}
	return resp
}
