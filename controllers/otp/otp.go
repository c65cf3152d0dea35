package otp

import (
	"fmt"
	"time"

	"thaliya-gateway/config"
	"thaliya-gateway/httpServices/delivery"
	"thaliya-gateway/logger"
	otpmodel "thaliya-gateway/models/otp"
	otpsvc "thaliya-gateway/services/otp"
	"thaliya-gateway/services/ratelimit"
	"thaliya-gateway/types"
	otpTypes "thaliya-gateway/types/otp"
	"thaliya-gateway/utils"

	"github.com/gofiber/fiber/v2"
)

// OTPController exposes the standalone OTP API, used by clients that
// verify a contact method outside the chat wizard. Unlike the wizard,
// this API allows multiple attempts per code.
type OTPController struct {
	otp      *otpsvc.Service
	limiter  *ratelimit.Limiter
	delivery delivery.Sender
	cfg      *config.Config
}

func NewOTPController(otp *otpsvc.Service, limiter *ratelimit.Limiter, sender delivery.Sender, cfg *config.Config) *OTPController {
	return &OTPController{otp: otp, limiter: limiter, delivery: sender, cfg: cfg}
}

// RequestOTP handles POST /auth/otp/request.
func (h *OTPController) RequestOTP(c *fiber.Ctx) error {
	var req otpTypes.RequestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}

	if req.Identifier == "" || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "identifier and session_id are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	identifier := utils.NormalizeIdentifier(req.Identifier)
	channel := req.Channel
	if channel == "" {
		channel = utils.ChannelFor(identifier)
	}
	if channel != "email" && channel != "sms" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "channel must be 'email' or 'sms'",
			Status:  fiber.StatusBadRequest,
		})
	}
	if channel == "email" && !utils.IsValidEmail(identifier) {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "identifier is not a valid email address",
			Status:  fiber.StatusBadRequest,
		})
	}

	return h.generateAndSend(c, req.SessionID, identifier, channel)
}

// ResendOTP handles POST /auth/otp/resend: issues a fresh code to the
// contact behind an earlier otp_id, regardless of that code's state.
func (h *OTPController) ResendOTP(c *fiber.Ctx) error {
	var req otpTypes.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}
	if req.OTPID == "" || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "otp_id and session_id are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	record, err := h.otp.ByID(req.OTPID)
	if err != nil {
		logger.Error("Failed to load OTP for resend", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Internal server error",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if record == nil || record.SessionID != req.SessionID {
		return c.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
			Message:   "No verification request found for this otp_id",
			Status:    fiber.StatusNotFound,
			ErrorCode: "OTP_NOT_FOUND",
		})
	}

	return h.generateAndSend(c, req.SessionID, record.Identifier, string(record.Channel))
}

func (h *OTPController) generateAndSend(c *fiber.Ctx, sessionID, identifier, channel string) error {
	identifierType := utils.IdentifierType(identifier)

	limit := h.limiter.Reserve(identifier, identifierType)
	if !limit.Allowed {
		waitMinutes := int(limit.RetryAfter.Minutes())
		if waitMinutes < 1 {
			waitMinutes = 1
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(otpTypes.RequestOTPResponse{
			Success: false,
			Message: fmt.Sprintf("Too many verification requests. Please wait %d minutes before trying again.", waitMinutes),
			RateLimitInfo: &otpTypes.RateLimitInfo{
				RequestsRemaining: 0,
				WindowMinutes:     int(h.cfg.RateLimitWindow.Minutes()),
				WaitMinutes:       waitMinutes,
				Reason:            limit.Reason,
			},
		})
	}

	otpChannel := otpmodel.ChannelSMS
	if channel == "email" {
		otpChannel = otpmodel.ChannelEmail
	}

	record, code, err := h.otp.Create(sessionID, identifier, otpChannel, h.cfg.DirectOTPAttempts)
	if err != nil {
		logger.Error("OTP generation failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message:   "Failed to generate verification code",
			Status:    fiber.StatusInternalServerError,
			ErrorCode: "OTP_GENERATION_FAILED",
		})
	}

	if err := h.delivery.SendOTP(c.Context(), identifier, channel, code); err != nil {
		logger.Error("OTP delivery failed", err)
		if cleanupErr := h.otp.ExpirePendingForSession(sessionID); cleanupErr != nil {
			logger.Error("Failed to expire undelivered OTP", cleanupErr)
		}
		return c.Status(fiber.StatusBadGateway).JSON(types.ErrorResponse{
			Message:   "Failed to send the verification code. Please try again.",
			Status:    fiber.StatusBadGateway,
			ErrorCode: "DELIVERY_FAILED",
		})
	}

	return c.Status(fiber.StatusOK).JSON(otpTypes.RequestOTPResponse{
		Success:          true,
		Message:          fmt.Sprintf("Verification code sent via %s", channel),
		OTPID:            record.OTPID,
		Channel:          channel,
		ExpiresInMinutes: int(h.cfg.OTPValidity.Minutes()),
		RateLimitInfo: &otpTypes.RateLimitInfo{
			RequestsRemaining: limit.Remaining,
			WindowMinutes:     int(h.cfg.RateLimitWindow.Minutes()),
		},
	})
}

// VerifyOTP handles POST /auth/otp/verify with the multi-attempt policy.
func (h *OTPController) VerifyOTP(c *fiber.Ctx) error {
	var req otpTypes.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}
	if req.OTPCode == "" || req.OTPID == "" || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "otp_code, otp_id and session_id are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	result := h.otp.VerifyByID(req.OTPID, req.SessionID, req.OTPCode)

	switch result.Reason {
	case otpsvc.ReasonSuccess:
		return c.Status(fiber.StatusOK).JSON(otpTypes.VerifyOTPResponse{
			Success:  true,
			Message:  result.Message,
			Verified: true,
		})
	case otpsvc.ReasonInvalidFormat:
		return c.Status(fiber.StatusBadRequest).JSON(otpTypes.VerifyOTPResponse{
			Success: false,
			Message: result.Message,
		})
	case otpsvc.ReasonInvalidCode:
		remaining := result.AttemptsRemaining
		return c.Status(fiber.StatusUnauthorized).JSON(otpTypes.VerifyOTPResponse{
			Success:           false,
			Message:           result.Message,
			AttemptsRemaining: &remaining,
		})
	case otpsvc.ReasonStorage:
		return c.Status(fiber.StatusInternalServerError).JSON(otpTypes.VerifyOTPResponse{
			Success: false,
			Message: result.Message,
		})
	default:
		// Not found, expired, exhausted, or session mismatch.
		return c.Status(fiber.StatusUnauthorized).JSON(otpTypes.VerifyOTPResponse{
			Success:  false,
			Message:  result.Message,
			NextStep: "request_new_code",
		})
	}
}

// RateLimitStatus handles GET /auth/otp/rate-limit/:identifier.
func (h *OTPController) RateLimitStatus(c *fiber.Ctx) error {
	identifier := utils.NormalizeIdentifier(c.Params("identifier"))
	if identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "identifier is required",
			Status:  fiber.StatusBadRequest,
		})
	}

	status, err := h.limiter.StatusFor(identifier, utils.IdentifierType(identifier))
	if err != nil {
		logger.Error("Failed to load rate limit status", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Internal server error",
			Status:  fiber.StatusInternalServerError,
		})
	}

	// Statistics are best effort; absent on storage errors.
	stats, err := h.otp.StatsForIdentifier(identifier)
	if err != nil {
		logger.Error("Failed to load OTP statistics", err)
		stats = nil
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Rate limit status",
		Status:  fiber.StatusOK,
		Data: fiber.Map{
			"rate_limit": status,
			"statistics": stats,
		},
	})
}

// CancelOTP handles DELETE /auth/otp/cancel/:otp_id.
func (h *OTPController) CancelOTP(c *fiber.Ctx) error {
	otpID := c.Params("otp_id")
	sessionID := c.Query("session_id")
	if otpID == "" || sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "otp_id and session_id are required",
			Status:  fiber.StatusBadRequest,
		})
	}

	result := h.otp.Cancel(otpID, sessionID)
	if !result.Valid {
		return c.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
			Message:   result.Message,
			Status:    fiber.StatusNotFound,
			ErrorCode: "OTP_NOT_FOUND",
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: result.Message,
		Status:  fiber.StatusOK,
	})
}

// AuthStatus handles GET /auth/otp/status/:session_id: whether the
// session has a verified contact method.
func (h *OTPController) AuthStatus(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
			Message: "session_id is required",
			Status:  fiber.StatusBadRequest,
		})
	}

	verified, err := h.otp.LatestVerified(sessionID)
	if err != nil {
		logger.Error("Failed to load verification status", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
			Message: "Internal server error",
			Status:  fiber.StatusInternalServerError,
		})
	}

	if verified == nil {
		return c.Status(fiber.StatusOK).JSON(otpTypes.AuthStatusResponse{
			Authenticated: false,
			SessionID:     sessionID,
			Message:       "No verified contact method for this session",
		})
	}

	resp := otpTypes.AuthStatusResponse{
		Authenticated: true,
		SessionID:     sessionID,
		Identifier:    verified.Identifier,
		Channel:       string(verified.Channel),
	}
	if verified.VerifiedAt != nil {
		resp.VerifiedAt = verified.VerifiedAt.Format(time.RFC3339)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
