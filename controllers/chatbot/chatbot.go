package chatbot

import (
	"fmt"

	"thaliya-gateway/logger"
	"thaliya-gateway/services/authflow"
	sessionsvc "thaliya-gateway/services/session"
	"thaliya-gateway/types"
	chatbotTypes "thaliya-gateway/types/chatbot"

	"github.com/gofiber/fiber/v2"
)

// ChatbotController exposes the guest chat surface: session creation and
// the conversational endpoint driven by the auth orchestrator.
type ChatbotController struct {
	sessions     *sessionsvc.Manager
	orchestrator *authflow.Orchestrator
}

func NewChatbotController(sessions *sessionsvc.Manager, orchestrator *authflow.Orchestrator) *ChatbotController {
	return &ChatbotController{sessions: sessions, orchestrator: orchestrator}
}

// CreateGuestSession handles POST /chatbot/guest/session.
func (h *ChatbotController) CreateGuestSession(c *fiber.Ctx) error {
	record, err := h.sessions.Create()
	if err != nil {
		logger.Error("Failed to create guest session", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Failed to create session",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(chatbotTypes.GuestSessionResponse{
		SessionToken: record.SessionID,
		ExpiresIn:    int(h.sessions.TTL.Seconds()),
	})
}

// GuestChat handles POST /chatbot/guest: one conversational turn.
func (h *ChatbotController) GuestChat(c *fiber.Ctx) error {
	var req chatbotTypes.GuestChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}

	if req.UserQuery == "" || req.SessionToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "user_query and session_token are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	valid, err := h.sessions.Validate(req.SessionToken)
	if err != nil {
		logger.Error("Session validation failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Internal server error",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if !valid {
		return c.Status(fiber.StatusUnauthorized).JSON(chatbotTypes.GuestChatResponse{
			Success:   false,
			ErrorCode: "INVALID_SESSION",
			Output:    "Invalid or expired session token. Please create a new session by calling /chatbot/guest/session",
		})
	}

	resp := h.orchestrator.Process(c.Context(), req.SessionToken, req.UserQuery)

	status := fiber.StatusOK
	switch resp.ErrorCode {
	case "RATE_LIMITED":
		status = fiber.StatusTooManyRequests
	case "INTERNAL_ERROR", "USER_CREATION_FAILED", "OTP_GENERATION_FAILED":
		status = fiber.StatusInternalServerError
	case "DELIVERY_FAILED":
		status = fiber.StatusBadGateway
	case "INVALID_SESSION":
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(resp)
}
