package handlers

import (
	"log"

	"github.com/campuslink/comms-backend/internal/httpx"
	"github.com/campuslink/comms-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type PresenceHandler struct {
	presenceService *service.PresenceService
}

func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// Heartbeat upserts the caller as online. Failures are logged and the
// caller still gets a success: a missed beat is repaired by the next tick,
// and retry storms help nobody.
func (h *PresenceHandler) Heartbeat(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if err := h.presenceService.Heartbeat(userID); err != nil {
		log.Printf("Heartbeat failed for user %d: %v", userID, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// MarkOffline records a graceful disconnect (tab close). Best effort, same
// swallow-and-log policy as Heartbeat.
func (h *PresenceHandler) MarkOffline(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if err := h.presenceService.MarkOffline(userID); err != nil {
		log.Printf("Mark offline failed for user %d: %v", userID, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// List returns the presence snapshot with derived online state.
func (h *PresenceHandler) List(c *fiber.Ctx) error {
	if _, err := httpx.LocalUint(c, "userID"); err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	responses, err := h.presenceService.SnapshotResponses()
	if err != nil {
		return httpx.FromAppError(c, err, "presence_snapshot_failed")
	}

	return c.JSON(fiber.Map{
		"presence": responses,
		"count":    len(responses),
	})
}
