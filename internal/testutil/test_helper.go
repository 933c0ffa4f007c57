package testutil

import (
	"testing"
	"time"

	"github.com/campuslink/comms-backend/internal/models"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestPresence creates a presence record with default values
func (h *TestHelper) CreateTestPresence(userID uint, online bool, lastSeen time.Time) *models.Presence {
	if userID == 0 {
		userID = 1
	}
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}

	return &models.Presence{
		ID:        userID,
		UserID:    userID,
		IsOnline:  online,
		LastSeen:  lastSeen,
		CreatedAt: lastSeen,
		UpdatedAt: lastSeen,
	}
}

// CreateTestChatMessage creates a chat message with default values
func (h *TestHelper) CreateTestChatMessage(id, senderID, recipientID uint, body string) *models.ChatMessage {
	if id == 0 {
		id = 1
	}
	if senderID == 0 {
		senderID = 1
	}
	if recipientID == 0 {
		recipientID = 2
	}
	if body == "" {
		body = "Test message"
	}

	return &models.ChatMessage{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
}

// CreateTestMailMessage creates a mail message with default values
func (h *TestHelper) CreateTestMailMessage(id, senderID, recipientID uint, subject string) *models.MailMessage {
	if id == 0 {
		id = 1
	}
	if senderID == 0 {
		senderID = 1
	}
	if recipientID == 0 {
		recipientID = 2
	}
	if subject == "" {
		subject = "Test subject"
	}

	return &models.MailMessage{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     subject,
		Body:        "Test body",
		CreatedAt:   time.Now().UTC(),
	}
}
