package authflow

import (
	"context"
	"fmt"

	"thaliya-gateway/constants"
	"thaliya-gateway/httpServices/delivery"
	"thaliya-gateway/logger"
	authtempmodel "thaliya-gateway/models/authtemp"
	otpmodel "thaliya-gateway/models/otp"
	sessionmodel "thaliya-gateway/models/session"
	"thaliya-gateway/services/authtemp"
	"thaliya-gateway/services/chat"
	otpsvc "thaliya-gateway/services/otp"
	"thaliya-gateway/services/ratelimit"
	sessionsvc "thaliya-gateway/services/session"
	usersvc "thaliya-gateway/services/user"
	"thaliya-gateway/types/chatbot"
	"thaliya-gateway/utils"

	"github.com/google/uuid"
)

// Orchestrator drives a guest conversation through the authentication
// wizard: name, date of birth and contact, OTP verification, then resume
// of the originally requested task. All state lives in the database; any
// gateway instance can serve the next turn.
type Orchestrator struct {
	Sessions       *sessionsvc.Manager
	Temp           *authtemp.Store
	OTP            *otpsvc.Service
	Limiter        *ratelimit.Limiter
	Users          *usersvc.Service
	Delivery       delivery.Sender
	Chat           *chat.Responder
	WizardAttempts int
}

// Process handles one guest turn. Mutations for a session are serialized
// through the session manager's keyed lock.
func (o *Orchestrator) Process(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	unlock := o.Sessions.Lock(sessionID)
	defer unlock()

	record, err := o.Sessions.Get(sessionID)
	if err != nil {
		logger.Error("Failed to load session state", err)
		return o.internalError(sessionID)
	}
	if record == nil {
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "INVALID_SESSION",
			Output:       "Please create a new session to continue.",
			SessionToken: sessionID,
		}
	}

	if err := o.Sessions.Touch(sessionID); err != nil {
		logger.Error("Failed to refresh session activity", err)
	}

	switch record.Status {
	case sessionmodel.StatusAwaitingAuthDetails:
		return o.handleStep1(ctx, sessionID, query)
	case sessionmodel.StatusAwaitingDOBEmail:
		return o.handleStep2(ctx, sessionID, query)
	case sessionmodel.StatusAwaitingOTP:
		return o.handleOTPVerification(ctx, sessionID, query)
	case sessionmodel.StatusAuthPaused:
		return o.handlePaused(ctx, sessionID, query)
	case sessionmodel.StatusAuthenticated:
		return o.handleAuthenticated(ctx, sessionID, query)
	case sessionmodel.StatusBookingAppointment:
		return o.handleBookingFollowUp(sessionID, query)
	case sessionmodel.StatusCreatingTicket:
		return o.handleTicketFollowUp(sessionID, query)
	default:
		return o.handleGeneral(ctx, sessionID, query)
	}
}

// handleGeneral classifies an unauthenticated query and either answers it
// or starts the auth wizard for intents that need identity.
func (o *Orchestrator) handleGeneral(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	intent := o.Chat.ClassifyIntent(ctx, query)

	switch intent {
	case constants.IntentRagInfo:
		answer := o.Chat.AnswerInfoQuestion(ctx, query)
		o.Sessions.StoreChatHistory(sessionID, query, answer, sessionmodel.StatusActive, intent, false)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       "rag_response",
			Output:       answer,
			SessionToken: sessionID,
		}

	case constants.IntentAppointment, constants.IntentTicket:
		if _, err := o.Temp.Begin(sessionID, "", "", intent, query); err != nil {
			logger.Error("Failed to stash original intent", err)
			return o.internalError(sessionID)
		}

		verb := "book an appointment"
		if intent == constants.IntentTicket {
			verb = "create a support ticket"
		}
		output := fmt.Sprintf(
			"I understand you want to %s. To proceed, I'll need to verify your identity first. Please provide your first name and last name.",
			verb,
		)

		if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAwaitingAuthDetails); err != nil {
			logger.Error("Failed to advance session state", err)
			return o.internalError(sessionID)
		}
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAwaitingAuthDetails, intent, false)

		return &chatbot.GuestChatResponse{
			Success:        true,
			Intent:         "awaiting_auth",
			Output:         output,
			SessionToken:   sessionID,
			RequiresAuth:   true,
			OriginalIntent: intent,
		}

	default:
		output := "Sorry, I can not answer that! I can help you with appointments, support tickets, or questions about our services."
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusActive, intent, false)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       constants.IntentGeneral,
			Output:       output,
			SessionToken: sessionID,
		}
	}
}

// handleStep1 collects first and last name.
func (o *Orchestrator) handleStep1(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	if IsRestartKeyword(query) {
		return o.restart(sessionID)
	}
	if LooksLikeQuestion(query) {
		return o.pause(ctx, sessionID, query, sessionmodel.StatusAwaitingAuthDetails)
	}

	name, ok := ParseName(query)
	if !ok {
		output := "Please provide your first name and last name (e.g., 'John Smith')"
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAwaitingAuthDetails, "auth_validation", true)
		return &chatbot.GuestChatResponse{
			Success:         true,
			Intent:          string(sessionmodel.StatusAwaitingAuthDetails),
			Output:          output,
			SessionToken:    sessionID,
			ValidationError: true,
		}
	}

	// The scratchpad usually exists already with the stashed intent; a
	// restart lands here without one.
	existing, err := o.Temp.Get(sessionID)
	if err != nil {
		logger.Error("Failed to load auth record", err)
		return o.internalError(sessionID)
	}
	if existing == nil {
		_, err = o.Temp.Begin(sessionID, name.FirstName, name.LastName, "", "")
	} else {
		err = o.Temp.SetNames(sessionID, name.FirstName, name.LastName)
	}
	if err != nil {
		logger.Error("Failed to store name", err)
		return o.internalError(sessionID)
	}

	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAwaitingDOBEmail); err != nil {
		logger.Error("Failed to advance session state", err)
		return o.internalError(sessionID)
	}

	output := fmt.Sprintf("Thanks %s! Now please provide your date of birth (MM/DD/YYYY) and phone number for verification.", name.FirstName)
	o.Sessions.StoreChatHistory(sessionID, "[Name provided]", output, sessionmodel.StatusAwaitingDOBEmail, "auth_step1", true)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       string(sessionmodel.StatusAwaitingDOBEmail),
		Output:       output,
		SessionToken: sessionID,
	}
}

// handleStep2 collects DOB and contact details, looks up the identity,
// and sends the first OTP. Phone is required.
func (o *Orchestrator) handleStep2(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	if IsRestartKeyword(query) {
		return o.restart(sessionID)
	}

	record, err := o.Temp.Get(sessionID)
	if err != nil {
		logger.Error("Failed to load auth record", err)
		return o.internalError(sessionID)
	}
	if record == nil || record.FirstName == "" || record.LastName == "" {
		// Required data is gone, fall back to step 1.
		output := "It looks like we need to start from the beginning. Please provide your first name and last name (e.g., 'John Smith')"
		if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAwaitingAuthDetails); err != nil {
			logger.Error("Failed to reset session state", err)
		}
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAwaitingAuthDetails, "auth_reset", true)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       string(sessionmodel.StatusAwaitingAuthDetails),
			Output:       output,
			SessionToken: sessionID,
			Restarted:    true,
		}
	}

	if LooksLikeQuestion(query) {
		return o.pause(ctx, sessionID, query, sessionmodel.StatusAwaitingDOBEmail)
	}

	contact, ok := ParseDOBContact(query)
	if !ok {
		output := fmt.Sprintf(
			"Hi %s, please provide your date of birth (MM/DD/YYYY) and phone number (e.g., '01/15/1990 (555) 123-4567'). Phone number is required for appointment reminders and emergency contact.",
			record.FirstName,
		)
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAwaitingDOBEmail, "auth_validation", true)
		return &chatbot.GuestChatResponse{
			Success:         true,
			Intent:          string(sessionmodel.StatusAwaitingDOBEmail),
			Output:          output,
			SessionToken:    sessionID,
			ValidationError: true,
		}
	}

	if err := o.Temp.SetContact(sessionID, contact.DOB, contact.Email, contact.Phone, "sms"); err != nil {
		logger.Error("Failed to store contact details", err)
		return o.internalError(sessionID)
	}

	// Existing identity reuses its id; a new one is created only after
	// OTP success.
	existing, err := o.Users.FindByIdentity(record.FirstName, record.LastName, contact.DOB, contact.Email, contact.Phone)
	if err != nil {
		logger.Error("User lookup failed", err)
		return o.internalError(sessionID)
	}
	isNewUser := existing == nil
	if existing != nil {
		if err := o.Temp.SetUserID(sessionID, existing.ID); err != nil {
			logger.Error("Failed to pin existing user", err)
			return o.internalError(sessionID)
		}
	}

	if resp := o.sendOTP(ctx, sessionID, contact.Phone, query); resp != nil {
		return resp
	}

	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAwaitingOTP); err != nil {
		logger.Error("Failed to advance session state", err)
		return o.internalError(sessionID)
	}

	var output string
	if isNewUser {
		output = fmt.Sprintf(
			"Great! We'll create your profile after verification. A 6-digit verification code has been sent to %s.\nImportant: You have only 1 attempt to enter the correct code.\nPlease enter the code carefully to complete your registration and authentication.",
			contact.Phone,
		)
	} else {
		output = fmt.Sprintf(
			"Welcome back! We've sent a 6-digit verification code to %s.\nImportant: You have only 1 attempt to enter the correct code.\nPlease enter the code carefully to complete authentication.",
			contact.Phone,
		)
	}
	o.Sessions.StoreChatHistory(sessionID, "[DOB/Phone provided]", output, sessionmodel.StatusAwaitingOTP, "auth_step2", true)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       string(sessionmodel.StatusAwaitingOTP),
		Output:       output,
		SessionToken: sessionID,
	}
}

// sendOTP runs the rate-limit reservation, generation, and delivery for
// one wizard OTP. Returns nil on success, or the response to hand back
// on failure; the session state is not advanced on failure.
func (o *Orchestrator) sendOTP(ctx context.Context, sessionID, phone, loggedQuery string) *chatbot.GuestChatResponse {
	limit := o.Limiter.Reserve(phone, utils.IdentifierType(phone))
	if !limit.Allowed {
		retryMinutes := int(limit.RetryAfter.Minutes())
		if retryMinutes < 1 {
			retryMinutes = 1
		}
		output := fmt.Sprintf(
			"You've reached the maximum number of verification requests. For security, please wait %d minutes before trying again.\n\nThis helps protect your profile from unauthorized access attempts.",
			retryMinutes,
		)
		o.Sessions.StoreChatHistory(sessionID, "[DOB/Phone provided]", output, sessionmodel.StatusAwaitingDOBEmail, "rate_limited", true)
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "RATE_LIMITED",
			Output:       output,
			SessionToken: sessionID,
			RateLimited:  true,
			RetryAfter:   int(limit.RetryAfter.Seconds()),
		}
	}

	_, code, err := o.OTP.Create(sessionID, phone, otpmodel.ChannelSMS, o.WizardAttempts)
	if err != nil {
		logger.Error("OTP generation failed", err)
		output := "Sorry, there was an error sending the verification code. Please try again later."
		o.Sessions.StoreChatHistory(sessionID, loggedQuery, output, sessionmodel.StatusAwaitingDOBEmail, "otp_error", true)
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "OTP_GENERATION_FAILED",
			Output:       output,
			SessionToken: sessionID,
		}
	}

	if err := o.Delivery.SendOTP(ctx, phone, "sms", code); err != nil {
		logger.Error("OTP delivery failed", err)
		// Do not leave an undeliverable code pending.
		if cleanupErr := o.OTP.ExpirePendingForSession(sessionID); cleanupErr != nil {
			logger.Error("Failed to expire undelivered OTP", cleanupErr)
		}
		output := "Sorry, we couldn't send the verification code right now. Please try again in a moment."
		o.Sessions.StoreChatHistory(sessionID, loggedQuery, output, sessionmodel.StatusAwaitingDOBEmail, "delivery_error", true)
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "DELIVERY_FAILED",
			Output:       output,
			SessionToken: sessionID,
		}
	}

	return nil
}

// handleOTPVerification processes the single-attempt code entry plus the
// resend and restart keywords.
func (o *Orchestrator) handleOTPVerification(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	record, err := o.Temp.Get(sessionID)
	if err != nil {
		logger.Error("Failed to load auth record", err)
		return o.internalError(sessionID)
	}
	if record == nil || record.FirstName == "" || record.LastName == "" {
		return o.restart(sessionID)
	}

	if IsResendKeyword(query) {
		return o.resendOTP(ctx, sessionID, record)
	}
	if IsRestartKeyword(query) {
		return o.restart(sessionID)
	}

	result := o.OTP.VerifySingleAttempt(sessionID, query)
	switch result.Reason {
	case otpsvc.ReasonSuccess:
		return o.finishAuthentication(sessionID, record)

	case otpsvc.ReasonInvalidFormat:
		// Format errors re-prompt without burning the single attempt.
		output := "The verification code is a 6-digit number. Please enter it exactly as received, or type 'new otp' for a fresh code."
		o.Sessions.StoreChatHistory(sessionID, "[OTP provided]", output, sessionmodel.StatusAwaitingOTP, "otp_format", true)
		return &chatbot.GuestChatResponse{
			Success:         true,
			Intent:          string(sessionmodel.StatusAwaitingOTP),
			Output:          output,
			SessionToken:    sessionID,
			ValidationError: true,
		}

	case otpsvc.ReasonStorage:
		return o.internalError(sessionID)

	default:
		// Wrong, expired, or already-consumed codes all read the same to
		// the guest: the code is gone, get a new one.
		output := "Invalid verification code. The code has been expired for security.\n\nYour options:\n- Type 'new otp' to get a fresh verification code\n- Type 'restart' to begin authentication again\n- Contact support if you need assistance"
		o.Sessions.StoreChatHistory(sessionID, "[OTP provided]", output, sessionmodel.StatusAwaitingOTP, "otp_invalid", true)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       string(sessionmodel.StatusAwaitingOTP),
			Output:       output,
			SessionToken: sessionID,
			Options:      []string{"new_otp", "restart"},
		}
	}
}

// resendOTP re-checks the rate limit and issues a fresh code to the
// contact collected in step 2.
func (o *Orchestrator) resendOTP(ctx context.Context, sessionID string, record *authtempmodel.AuthTempRecord) *chatbot.GuestChatResponse {
	contact := record.Phone
	channel := "sms"
	if contact == "" {
		contact = record.Email
		channel = "email"
	}
	if contact == "" {
		return o.restart(sessionID)
	}

	limit := o.Limiter.Reserve(contact, utils.IdentifierType(contact))
	if !limit.Allowed {
		retryMinutes := int(limit.RetryAfter.Minutes())
		if retryMinutes < 1 {
			retryMinutes = 1
		}
		output := fmt.Sprintf(
			"Too many verification requests. Please wait %d minutes before requesting a new code.\n\nYour options:\n- Wait and try again later\n- Type 'restart' to begin authentication with different contact info\n- Contact support for assistance",
			retryMinutes,
		)
		o.Sessions.StoreChatHistory(sessionID, "new otp", output, sessionmodel.StatusAwaitingOTP, "rate_limited", true)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       string(sessionmodel.StatusAwaitingOTP),
			Output:       output,
			SessionToken: sessionID,
			RateLimited:  true,
			RetryAfter:   int(limit.RetryAfter.Seconds()),
		}
	}

	otpChannel := otpmodel.ChannelSMS
	if channel == "email" {
		otpChannel = otpmodel.ChannelEmail
	}
	_, code, err := o.OTP.Create(sessionID, contact, otpChannel, o.WizardAttempts)
	if err != nil {
		logger.Error("OTP regeneration failed", err)
		output := "Sorry, there was an error generating a new verification code. Please type 'restart' to begin again or contact support."
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "OTP_GENERATION_FAILED",
			Output:       output,
			SessionToken: sessionID,
		}
	}

	if err := o.Delivery.SendOTP(ctx, contact, channel, code); err != nil {
		logger.Error("OTP delivery failed on resend", err)
		if cleanupErr := o.OTP.ExpirePendingForSession(sessionID); cleanupErr != nil {
			logger.Error("Failed to expire undelivered OTP", cleanupErr)
		}
		output := "Sorry, we couldn't send the verification code right now. Please try again in a moment."
		return &chatbot.GuestChatResponse{
			Success:      false,
			ErrorCode:    "DELIVERY_FAILED",
			Output:       output,
			SessionToken: sessionID,
		}
	}

	output := fmt.Sprintf(
		"New verification code sent to %s!\nPlease enter the 6-digit code to complete authentication.\n\nNote: You have only 1 attempt to enter the correct code.\n\nOptions:\n- Enter the 6-digit code from your %s\n- Type 'restart' if you want to use different contact info",
		contact, channel,
	)
	o.Sessions.StoreChatHistory(sessionID, "new otp", output, sessionmodel.StatusAwaitingOTP, "otp_resent", true)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       string(sessionmodel.StatusAwaitingOTP),
		Output:       output,
		SessionToken: sessionID,
		OTPResent:    true,
	}
}

// finishAuthentication runs the post-verification sequence: deferred user
// creation, session link, scratchpad cleanup, and resume of the original
// task.
func (o *Orchestrator) finishAuthentication(sessionID string, record *authtempmodel.AuthTempRecord) *chatbot.GuestChatResponse {
	userID := record.UserID
	userCreated := false

	if userID == nil {
		if record.DOB == nil {
			logger.Error("Auth record missing DOB after OTP success", nil)
			return o.restart(sessionID)
		}
		created, err := o.Users.Create(record.FirstName, record.LastName, *record.DOB, record.Email, record.Phone)
		if err != nil {
			logger.Error("User creation after OTP verification failed", err)
			output := "Authentication verification succeeded, but we encountered an error creating your account. Please try again or contact support if this persists."
			o.Sessions.StoreChatHistory(sessionID, "[OTP verified]", output, sessionmodel.StatusAwaitingOTP, "auth_step_error", true)
			return &chatbot.GuestChatResponse{
				Success:      false,
				ErrorCode:    "USER_CREATION_FAILED",
				Output:       output,
				SessionToken: sessionID,
			}
		}
		userID = &created.ID
		userCreated = true
	}

	if _, err := o.Sessions.CreateAuthenticatedLink(sessionID, *userID); err != nil {
		logger.Error("Failed to create authenticated session", err)
		return o.internalError(sessionID)
	}

	originalIntent := record.OriginalIntent
	originalQuery := record.OriginalQuery

	if err := o.Temp.Delete(sessionID); err != nil {
		logger.Error("Failed to clean up auth record", err)
	}

	if originalIntent == constants.IntentAppointment || originalIntent == constants.IntentTicket {
		return o.resumeOriginalTask(sessionID, originalIntent, originalQuery, *userID, userCreated)
	}

	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAuthenticated); err != nil {
		logger.Error("Failed to advance session state", err)
	}

	output := "Verification Success! How can I help you today?"
	o.Sessions.StoreChatHistory(sessionID, "[OTP verified]", output, sessionmodel.StatusAuthenticated, "auth_success", true)

	return &chatbot.GuestChatResponse{
		Success:       true,
		Intent:        string(sessionmodel.StatusAuthenticated),
		Output:        output,
		SessionToken:  sessionID,
		Authenticated: true,
		UserID:        userID,
		UserCreated:   userCreated,
	}
}

// resumeOriginalTask picks the interrupted request back up instead of
// stopping at a generic success message.
func (o *Orchestrator) resumeOriginalTask(sessionID, originalIntent, originalQuery string, userID uint, userCreated bool) *chatbot.GuestChatResponse {
	if originalIntent == constants.IntentAppointment {
		output := fmt.Sprintf(
			"Great! Now I can help you book an appointment. Based on your earlier request: '%s'. What type of appointment would you like to schedule?",
			originalQuery,
		)
		if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusBookingAppointment); err != nil {
			logger.Error("Failed to advance session state", err)
		}
		o.Sessions.StoreChatHistory(sessionID, "Authentication completed", output, sessionmodel.StatusBookingAppointment, constants.IntentAppointment, false)
		return &chatbot.GuestChatResponse{
			Success:        true,
			Intent:         constants.FlowBookingAppointment,
			Output:         output,
			SessionToken:   sessionID,
			Authenticated:  true,
			UserID:         &userID,
			UserCreated:    userCreated,
			OriginalIntent: originalIntent,
		}
	}

	ticketType := ExtractTicketType(originalQuery)
	output := fmt.Sprintf(
		"Perfect! I can now help you with your %s request. Based on your earlier message: '%s'. Please provide more details about your issue.",
		ticketType, originalQuery,
	)
	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusCreatingTicket); err != nil {
		logger.Error("Failed to advance session state", err)
	}
	o.Sessions.StoreChatHistory(sessionID, "Authentication completed", output, sessionmodel.StatusCreatingTicket, constants.IntentTicket, false)
	return &chatbot.GuestChatResponse{
		Success:        true,
		Intent:         constants.FlowCreatingTicket,
		Output:         output,
		SessionToken:   sessionID,
		Authenticated:  true,
		UserID:         &userID,
		UserCreated:    userCreated,
		OriginalIntent: originalIntent,
	}
}

// restart wipes the wizard state back to step 1: scratchpad deleted,
// pending OTPs retired.
func (o *Orchestrator) restart(sessionID string) *chatbot.GuestChatResponse {
	if err := o.Temp.Delete(sessionID); err != nil {
		logger.Error("Failed to delete auth record on restart", err)
	}
	if err := o.OTP.ExpirePendingForSession(sessionID); err != nil {
		logger.Error("Failed to expire pending OTPs on restart", err)
	}
	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAwaitingAuthDetails); err != nil {
		logger.Error("Failed to reset session state", err)
		// Fall back to the general state rather than trapping the guest.
		if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusActive); err != nil {
			logger.Error("Failed to reset session to general", err)
		}
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       constants.IntentGeneral,
			Output:       "Let's start fresh. How can I help you today?",
			SessionToken: sessionID,
			Restarted:    true,
		}
	}

	output := "Let's start over with the authentication process.\nPlease provide your first name and last name (e.g., 'John Smith')"
	o.Sessions.StoreChatHistory(sessionID, "restart", output, sessionmodel.StatusAwaitingAuthDetails, "auth_restart", true)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       string(sessionmodel.StatusAwaitingAuthDetails),
		Output:       output,
		SessionToken: sessionID,
		Restarted:    true,
	}
}

// pause answers an off-topic question asked mid-wizard and parks the
// current step so "continue" can restore it.
func (o *Orchestrator) pause(ctx context.Context, sessionID, query string, currentState sessionmodel.SessionStatus) *chatbot.GuestChatResponse {
	answer := o.Chat.AnswerInfoQuestion(ctx, query)
	output := answer + "\n\nWe were in the middle of verifying your identity. Type 'continue' to pick up where we left off, or 'restart' to start over."

	if err := o.Temp.SetPausedState(sessionID, string(currentState)); err != nil {
		// Without a scratchpad there is nothing to resume; answer the
		// question and stay on the current step.
		logger.Error("Failed to save paused state", err)
		o.Sessions.StoreChatHistory(sessionID, query, answer, currentState, "general", false)
		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       constants.IntentGeneral,
			Output:       answer,
			SessionToken: sessionID,
		}
	}

	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAuthPaused); err != nil {
		logger.Error("Failed to pause session", err)
		return o.internalError(sessionID)
	}
	o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAuthPaused, "auth_paused", false)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       constants.IntentGeneral,
		Output:       output,
		SessionToken: sessionID,
		Paused:       true,
		Options:      []string{"continue", "restart"},
	}
}

// handlePaused resolves a parked wizard: continue restores the saved
// step, restart wipes it, anything else is answered as another general
// question.
func (o *Orchestrator) handlePaused(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	if IsRestartKeyword(query) {
		return o.restart(sessionID)
	}

	record, err := o.Temp.Get(sessionID)
	if err != nil {
		logger.Error("Failed to load auth record", err)
		return o.internalError(sessionID)
	}
	if record == nil || record.AuthPausedState == "" {
		return o.restart(sessionID)
	}

	if IsContinueKeyword(query) {
		resumedState := sessionmodel.SessionStatus(record.AuthPausedState)
		if err := o.Temp.ClearPausedState(sessionID); err != nil {
			logger.Error("Failed to clear paused state", err)
		}
		if err := o.Sessions.UpdateStatus(sessionID, resumedState); err != nil {
			logger.Error("Failed to resume session", err)
			return o.internalError(sessionID)
		}

		var output string
		if resumedState == sessionmodel.StatusAwaitingAuthDetails {
			output = "Let's continue. Please provide your first name and last name (e.g., 'John Smith')"
		} else {
			output = fmt.Sprintf("Let's continue, %s. Please provide your date of birth (MM/DD/YYYY) and phone number.", record.FirstName)
		}
		o.Sessions.StoreChatHistory(sessionID, query, output, resumedState, "auth_resumed", false)

		return &chatbot.GuestChatResponse{
			Success:      true,
			Intent:       string(resumedState),
			Output:       output,
			SessionToken: sessionID,
			Resumed:      true,
		}
	}

	answer := o.Chat.AnswerInfoQuestion(ctx, query)
	output := answer + "\n\nWhenever you're ready, type 'continue' to finish verifying your identity, or 'restart' to start over."
	o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAuthPaused, "general", false)

	return &chatbot.GuestChatResponse{
		Success:      true,
		Intent:       constants.IntentGeneral,
		Output:       output,
		SessionToken: sessionID,
		Paused:       true,
		Options:      []string{"continue", "restart"},
	}
}

// handleAuthenticated serves a verified guest. An expired user link drops
// the session back to the general flow.
func (o *Orchestrator) handleAuthenticated(ctx context.Context, sessionID, query string) *chatbot.GuestChatResponse {
	link, err := o.Sessions.AuthenticatedLink(sessionID)
	if err != nil {
		logger.Error("Failed to load authenticated session", err)
		return o.internalError(sessionID)
	}
	if link == nil {
		if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusActive); err != nil {
			logger.Error("Failed to reset session state", err)
		}
		return o.handleGeneral(ctx, sessionID, query)
	}

	userID := link.UserID
	intent := o.Chat.ClassifyIntent(ctx, query)

	switch intent {
	case constants.IntentRagInfo:
		answer := o.Chat.AnswerInfoQuestion(ctx, query)
		o.Sessions.StoreChatHistory(sessionID, query, answer, sessionmodel.StatusAuthenticated, intent, false)
		return &chatbot.GuestChatResponse{
			Success:       true,
			Intent:        "rag_response",
			Output:        answer,
			SessionToken:  sessionID,
			Authenticated: true,
			UserID:        &userID,
		}

	case constants.IntentAppointment:
		return o.acknowledgeBooking(sessionID, query, userID)

	case constants.IntentTicket:
		return o.acknowledgeTicket(sessionID, query, userID)

	default:
		output := "I'm here to help! You can book appointments, create tickets, or ask any questions about our healthcare services."
		o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAuthenticated, intent, false)
		return &chatbot.GuestChatResponse{
			Success:       true,
			Intent:        constants.IntentGeneral,
			Output:        output,
			SessionToken:  sessionID,
			Authenticated: true,
			UserID:        &userID,
		}
	}
}

// handleBookingFollowUp handles the turn after authentication resumed
// into the booking flow.
func (o *Orchestrator) handleBookingFollowUp(sessionID, query string) *chatbot.GuestChatResponse {
	link, err := o.Sessions.AuthenticatedLink(sessionID)
	if err != nil || link == nil {
		return o.restart(sessionID)
	}
	return o.acknowledgeBooking(sessionID, query, link.UserID)
}

// handleTicketFollowUp handles the turn after authentication resumed into
// the ticket flow.
func (o *Orchestrator) handleTicketFollowUp(sessionID, query string) *chatbot.GuestChatResponse {
	link, err := o.Sessions.AuthenticatedLink(sessionID)
	if err != nil || link == nil {
		return o.restart(sessionID)
	}
	return o.acknowledgeTicket(sessionID, query, link.UserID)
}

// acknowledgeBooking records an appointment request and hands it to the
// downstream tenant service. The gateway keeps only the reference id.
func (o *Orchestrator) acknowledgeBooking(sessionID, query string, userID uint) *chatbot.GuestChatResponse {
	bookingID := uuid.NewString()
	appointmentType := ExtractAppointmentType(query)

	output := fmt.Sprintf(
		"Your %s appointment request has been received! Reference ID: %s. Our team will contact you within 24 hours to confirm the details.",
		appointmentType, bookingID[:8],
	)
	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAuthenticated); err != nil {
		logger.Error("Failed to update session state", err)
	}
	o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAuthenticated, constants.IntentAppointment, false)

	return &chatbot.GuestChatResponse{
		Success:       true,
		Intent:        "booking",
		Output:        output,
		SessionToken:  sessionID,
		Authenticated: true,
		UserID:        &userID,
	}
}

// acknowledgeTicket records a support request and hands it to the
// downstream tenant service.
func (o *Orchestrator) acknowledgeTicket(sessionID, query string, userID uint) *chatbot.GuestChatResponse {
	ticketID := uuid.NewString()
	ticketType := ExtractTicketType(query)
	priority := TicketPriority(query)

	output := fmt.Sprintf(
		"Your %s support ticket has been created! Ticket ID: %s (priority: %s). We'll respond within 2 business hours.",
		ticketType, ticketID[:8], priority,
	)
	if err := o.Sessions.UpdateStatus(sessionID, sessionmodel.StatusAuthenticated); err != nil {
		logger.Error("Failed to update session state", err)
	}
	o.Sessions.StoreChatHistory(sessionID, query, output, sessionmodel.StatusAuthenticated, constants.IntentTicket, false)

	return &chatbot.GuestChatResponse{
		Success:       true,
		Intent:        "ticket",
		Output:        output,
		SessionToken:  sessionID,
		Authenticated: true,
		UserID:        &userID,
	}
}

func (o *Orchestrator) internalError(sessionID string) *chatbot.GuestChatResponse {
	return &chatbot.GuestChatResponse{
		Success:      false,
		ErrorCode:    "INTERNAL_ERROR",
		Output:       "Something went wrong on our side. Please try again in a moment.",
		SessionToken: sessionID,
	}
}
