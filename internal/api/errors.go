package api

import (
	"github.com/resumeforge/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// respondError maps a service error to its HTTP response. Internal detail
// is logged, never returned.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	if appErr.Type == models.ErrorTypeInternal || appErr.Type == models.ErrorTypeStorage {
		fiberlog.Errorf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
		"error": appErr,
	})
}
