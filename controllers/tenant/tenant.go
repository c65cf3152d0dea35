package tenant

import (
	"time"

	"thaliya-gateway/types"

	"github.com/gofiber/fiber/v2"
)

// TenantController serves the per-tenant routes behind the service-token
// gate. The downstream healthcare adapters live outside the gateway; these
// handlers cover the auth boundary: health, service info, and request
// acceptance.
type TenantController struct {
	serviceName string
}

func NewTenantController(serviceName string) *TenantController {
	return &TenantController{serviceName: serviceName}
}

// Health handles GET /services/:tenant/health.
func (h *TenantController) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"service":   h.serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Info handles GET /services/:tenant/info, reporting the caller's own
// token claims back for diagnostics.
func (h *TenantController) Info(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Service information",
		Status:  fiber.StatusOK,
		Data: fiber.Map{
			"service":   h.serviceName,
			"client_id": c.Locals("client_id"),
		},
	})
}

// Process handles POST /services/:tenant/process: accepts a request on
// behalf of the downstream adapter.
func (h *TenantController) Process(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "Invalid request body",
			Status:  fiber.StatusBadRequest,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(types.ApiResponse{
		Message: "Request accepted for processing",
		Status:  fiber.StatusAccepted,
		Data: fiber.Map{
			"service":     h.serviceName,
			"accepted_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
