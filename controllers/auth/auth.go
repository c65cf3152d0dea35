package auth

import (
	"errors"
	"fmt"
	"time"

	"thaliya-gateway/logger"
	"thaliya-gateway/services/credentials"
	"thaliya-gateway/services/token"
	"thaliya-gateway/types"
	authTypes "thaliya-gateway/types/auth"

	"github.com/gofiber/fiber/v2"
)

// AuthController handles the OAuth2 client-credentials endpoints used by
// the downstream tenant services.
type AuthController struct {
	credentials    *credentials.Store
	issuer         *token.Issuer
	loggerInstance *logger.AsyncLogger
}

func NewAuthController(creds *credentials.Store, issuer *token.Issuer, asyncLogger *logger.AsyncLogger) *AuthController {
	return &AuthController{credentials: creds, issuer: issuer, loggerInstance: asyncLogger}
}

// IssueToken handles POST /auth/token: validates client credentials and
// mints a service bearer token.
func (h *AuthController) IssueToken(c *fiber.Ctx) error {
	var req authTypes.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Error parsing token request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "client_id and client_secret are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	serviceName, err := h.credentials.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			h.audit(req.ClientID, "", "token_rejected")
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
				Message:   "Invalid client credentials",
				Status:    fiber.StatusUnauthorized,
				ErrorCode: "INVALID_CREDENTIALS",
			})
		}
		logger.Error("Credential check failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Internal server error",
			Status:  fiber.StatusInternalServerError,
		})
	}

	accessToken, err := h.issuer.Issue(req.ClientID, serviceName)
	if err != nil {
		logger.Error("Failed to issue service token", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to issue token",
			Status:  fiber.StatusInternalServerError,
		})
	}

	h.audit(req.ClientID, serviceName, "token_issued")

	return c.Status(fiber.StatusOK).JSON(authTypes.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
		ServiceName: serviceName,
	})
}

// VerifyToken handles POST /auth/verify: decodes the bearer token and
// reports its claims. Requires the ServiceAuth middleware.
func (h *AuthController) VerifyToken(c *fiber.Ctx) error {
	claims, ok := c.Locals("token_claims").(*token.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(authTypes.VerifyResponse{Valid: false})
	}

	return c.Status(fiber.StatusOK).JSON(authTypes.VerifyResponse{
		Valid:     true,
		Service:   claims.ServiceName,
		ClientID:  claims.ClientID,
		ExpiresAt: claims.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthController) audit(clientID, serviceName, event string) {
	if h.loggerInstance == nil {
		return
	}
	h.loggerInstance.Log(types.LogEntry{
		Method:       "POST",
		URL:          "/auth/token",
		ServiceName:  serviceName,
		RequestBody:  fmt.Sprintf("client_id=%s", clientID),
		ResponseBody: event,
		CreatedAt:    time.Now(),
	})
}
