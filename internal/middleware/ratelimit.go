package middleware

import (
	"strconv"

	"github.com/campuslink/comms-backend/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// PerUserRateKey keys rate limiting by the authenticated user, not the
// client IP. Campus clients sit behind shared NAT addresses, so an
// IP-keyed bucket would let one user's beats exhaust everyone else's.
// Requests that somehow reach the limiter unauthenticated fall back to
// the IP.
func PerUserRateKey(c *fiber.Ctx) string {
	if userID, err := httpx.LocalUint(c, "userID"); err == nil {
		return "user:" + strconv.FormatUint(uint64(userID), 10)
	}
	return "ip:" + c.IP()
}
