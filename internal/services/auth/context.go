package auth

import (
	"github.com/gofiber/fiber/v2"
)

const contextKey = "auth_identity"

// SetIdentity stores the resolved caller on the request context.
func SetIdentity(c *fiber.Ctx, id *Identity) {
	c.Locals(contextKey, id)
}

// GetIdentity returns the resolved caller, or nil for unauthenticated
// requests.
func GetIdentity(c *fiber.Ctx) *Identity {
	id, ok := c.Locals(contextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// GetUserID returns the account the request operates on.
func GetUserID(c *fiber.Ctx) (string, bool) {
	id := GetIdentity(c)
	if id == nil {
		return "", false
	}
	userID := id.EffectiveUserID()
	return userID, userID != ""
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	id := GetIdentity(c)
	return id != nil && id.IsAdmin()
}
