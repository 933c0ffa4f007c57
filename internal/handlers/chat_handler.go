package handlers

import (
	"strconv"

	"github.com/campuslink/comms-backend/internal/httpx"
	"github.com/campuslink/comms-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type sendChatInput struct {
	RecipientID uint   `json:"recipient_id"`
	Body        string `json:"body"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input sendChatInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.chatService.Send(userID, input.RecipientID, input.Body)
	if err != nil {
		return httpx.FromAppError(c, err, "send_message_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerIDStr := c.Query("peer_id")
	if peerIDStr == "" {
		return httpx.BadRequest(c, "missing_peer", "peer_id is required")
	}
	peerID, err := strconv.ParseUint(peerIDStr, 10, 32)
	if err != nil || peerID == 0 {
		return httpx.BadRequest(c, "invalid_peer", "Invalid peer_id")
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	// before_id pages back through older messages; the oldest id of the
	// previous page is the next cursor.
	var beforeID uint
	if beforeStr := c.Query("before_id"); beforeStr != "" {
		b, err := strconv.ParseUint(beforeStr, 10, 32)
		if err != nil {
			return httpx.BadRequest(c, "invalid_cursor", "Invalid before_id")
		}
		beforeID = uint(b)
	}

	messages, err := h.chatService.History(userID, uint(peerID), limit, beforeID)
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_messages_failed")
	}

	responses := make([]interface{}, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse()
	}

	return c.JSON(fiber.Map{
		"messages": responses,
		"count":    len(messages),
	})
}

func (h *ChatHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerID, err := strconv.ParseUint(c.Params("peer_id"), 10, 32)
	if err != nil || peerID == 0 {
		return httpx.BadRequest(c, "invalid_peer", "Invalid peer_id")
	}

	updated, err := h.chatService.MarkConversationRead(userID, uint(peerID))
	if err != nil {
		return httpx.FromAppError(c, err, "mark_read_failed")
	}

	return c.JSON(fiber.Map{
		"updated": updated,
	})
}

// GetContacts renders the contact list: directory minus self, online
// first, names alphabetical within each group.
func (h *ChatHandler) GetContacts(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	contacts, err := h.chatService.ListContacts(c.Context(), userID)
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_contacts_failed")
	}

	return c.JSON(fiber.Map{
		"contacts": contacts,
		"count":    len(contacts),
	})
}
