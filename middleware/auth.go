package middleware

import (
	"errors"
	"strings"

	"thaliya-gateway/services/token"
	"thaliya-gateway/types"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuth validates the bearer token on service-to-service routes and
// stores the decoded claims in the request context.
func ServiceAuth(issuer *token.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, errResp := claimsFromRequest(c, issuer)
		if errResp != nil {
			return c.Status(errResp.Status).JSON(errResp)
		}

		c.Locals("client_id", claims.ClientID)
		c.Locals("service_name", claims.ServiceName)
		c.Locals("token_claims", claims)
		return c.Next()
	}
}

// RequireService gates a tenant route: the bearer's service_name claim
// must match the route's tenant exactly, else 403.
func RequireService(serviceName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenService, ok := c.Locals("service_name").(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ErrorResponse{
				Message: "Authentication required",
				Status:  fiber.StatusUnauthorized,
			})
		}
		if tokenService != serviceName {
			return c.Status(fiber.StatusForbidden).JSON(types.ErrorResponse{
				Message:   "Token is not authorized for this service",
				Status:    fiber.StatusForbidden,
				ErrorCode: "SERVICE_MISMATCH",
			})
		}
		return c.Next()
	}
}

func claimsFromRequest(c *fiber.Ctx, issuer *token.Issuer) (*token.Claims, *types.ErrorResponse) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, &types.ErrorResponse{
			Message: "Authorization token required",
			Status:  fiber.StatusUnauthorized,
		}
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return nil, &types.ErrorResponse{
			Message: "Invalid authorization header format",
			Status:  fiber.StatusUnauthorized,
		}
	}

	claims, err := issuer.Verify(tokenParts[1])
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, &types.ErrorResponse{
				Message:   "Token has expired",
				Status:    fiber.StatusUnauthorized,
				ErrorCode: "TOKEN_EXPIRED",
			}
		}
		return nil, &types.ErrorResponse{
			Message:   "Invalid token",
			Status:    fiber.StatusUnauthorized,
			ErrorCode: "TOKEN_INVALID",
		}
	}

	return claims, nil
}
