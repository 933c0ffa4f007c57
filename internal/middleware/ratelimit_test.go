package middleware

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

func TestPerUserRateKeySeparatesUsersSharingAnAddress(t *testing.T) {
	app := fiber.New()

	keyFor := func(userID uint) string {
		c := app.AcquireCtx(&fasthttp.RequestCtx{})
		defer app.ReleaseCtx(c)
		c.Locals("userID", userID)
		return PerUserRateKey(c)
	}

	// Two users behind one NAT address must land in different buckets.
	if keyFor(1) == keyFor(2) {
		t.Errorf("users 1 and 2 share a rate key")
	}
	if got, want := keyFor(7), "user:7"; got != want {
		t.Errorf("PerUserRateKey = %q, want %q", got, want)
	}
}

func TestPerUserRateKeyFallsBackToIP(t *testing.T) {
	app := fiber.New()
	c := app.AcquireCtx(&fasthttp.RequestCtx{})
	defer app.ReleaseCtx(c)

	got := PerUserRateKey(c)
	if got != "ip:"+c.IP() {
		t.Errorf("PerUserRateKey without auth = %q, want IP fallback", got)
	}
}
