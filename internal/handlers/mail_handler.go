package handlers

import (
	"strconv"
	"strings"

	"github.com/campuslink/comms-backend/internal/httpx"
	"github.com/campuslink/comms-backend/internal/models"
	"github.com/campuslink/comms-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MailHandler struct {
	mailService *service.MailService
}

func NewMailHandler(mailService *service.MailService) *MailHandler {
	return &MailHandler{mailService: mailService}
}

type composeInput struct {
	RecipientID uint   `json:"recipient_id" form:"recipient_id"`
	Subject     string `json:"subject" form:"subject"`
	Body        string `json:"body" form:"body"`
}

// Compose accepts JSON for plain mail and multipart/form-data when a
// single attachment rides along. The attachment is uploaded before the
// row is written; a failed upload fails the whole request.
func (h *MailHandler) Compose(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input composeInput
	in := service.ComposeInput{}

	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		input.Subject = c.FormValue("subject")
		input.Body = c.FormValue("body")
		if idStr := c.FormValue("recipient_id"); idStr != "" {
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return httpx.BadRequest(c, "invalid_recipient", "Invalid recipient_id")
			}
			input.RecipientID = uint(id)
		}

		if fileHeader, err := c.FormFile("attachment"); err == nil && fileHeader != nil {
			file, err := fileHeader.Open()
			if err != nil {
				return httpx.BadRequest(c, "invalid_attachment", "Could not read attachment")
			}
			defer file.Close()

			contentType := fileHeader.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			in.Attachment = &service.AttachmentUpload{
				Reader:      file,
				DisplayName: fileHeader.Filename,
				ByteSize:    fileHeader.Size,
				ContentType: contentType,
			}
		}
	} else {
		if err := c.BodyParser(&input); err != nil {
			return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
		}
	}

	in.RecipientID = input.RecipientID
	in.Subject = input.Subject
	in.Body = input.Body

	message, err := h.mailService.Compose(c.Context(), userID, in)
	if err != nil {
		return httpx.FromAppError(c, err, "compose_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *MailHandler) Inbox(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messages, err := h.mailService.Inbox(userID)
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_inbox_failed")
	}

	return c.JSON(mailListPayload(messages))
}

func (h *MailHandler) Sent(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messages, err := h.mailService.Sent(userID)
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_sent_failed")
	}

	return c.JSON(mailListPayload(messages))
}

func mailListPayload(messages []models.MailMessage) fiber.Map {
	responses := make([]interface{}, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse()
	}
	return fiber.Map{
		"messages": responses,
		"count":    len(messages),
	}
}

// Get returns one message; viewing as the recipient stamps the read
// transition.
func (h *MailHandler) Get(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messageID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || messageID == 0 {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	message, err := h.mailService.Read(userID, uint(messageID))
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_mail_failed")
	}

	return c.JSON(message.ToResponse())
}

func (h *MailHandler) ToggleStar(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messageID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || messageID == 0 {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	message, err := h.mailService.ToggleStar(userID, uint(messageID))
	if err != nil {
		return httpx.FromAppError(c, err, "toggle_star_failed")
	}

	return c.JSON(message.ToResponse())
}

// Delete flips the caller's own deletion flag; the other party's folder is
// untouched.
func (h *MailHandler) Delete(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messageID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || messageID == 0 {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	if err := h.mailService.Delete(userID, uint(messageID)); err != nil {
		return httpx.FromAppError(c, err, "delete_mail_failed")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetAttachment streams the blob from the attachment store.
func (h *MailHandler) GetAttachment(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messageID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || messageID == 0 {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	body, st, name, err := h.mailService.FetchAttachment(c.Context(), userID, uint(messageID))
	if err != nil {
		return httpx.FromAppError(c, err, "fetch_attachment_failed")
	}

	contentType := st.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)

	// fasthttp closes the reader once the stream is drained.
	size := -1
	if st.Size > 0 {
		size = int(st.Size)
	}
	c.Context().SetBodyStream(body, size)
	return nil
}

// PurgeDeleted is the operator-facing housekeeping hook; admin role only.
func (h *MailHandler) PurgeDeleted(c *fiber.Ctx) error {
	if _, err := httpx.LocalUint(c, "userID"); err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	if role, _ := c.Locals("role").(string); role != "admin" {
		return httpx.Forbidden(c, "admin_required", "Admin role required")
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	purged, err := h.mailService.PurgeDeleted(c.Context(), limit)
	if err != nil {
		return httpx.FromAppError(c, err, "purge_failed")
	}

	return c.JSON(fiber.Map{
		"purged": purged,
	})
}
