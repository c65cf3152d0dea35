package otp

// RequestOTPRequest is the payload for requesting a standalone OTP.
type RequestOTPRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=email sms"`
	SessionID  string `json:"session_id" validate:"required"`
}

// VerifyOTPRequest is the payload for verifying a standalone OTP.
type VerifyOTPRequest struct {
	OTPCode   string `json:"otp_code" validate:"required"`
	OTPID     string `json:"otp_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// RateLimitInfo reports the caller's remaining OTP quota.
type RateLimitInfo struct {
	RequestsRemaining int    `json:"requests_remaining"`
	WindowMinutes     int    `json:"window_minutes"`
	WaitMinutes       int    `json:"wait_minutes,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// RequestOTPResponse is returned after an OTP generation attempt.
type RequestOTPResponse struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	OTPID            string         `json:"otp_id,omitempty"`
	Channel          string         `json:"channel,omitempty"`
	ExpiresInMinutes int            `json:"expires_in_minutes,omitempty"`
	RateLimitInfo    *RateLimitInfo `json:"rate_limit_info,omitempty"`
}

// VerifyOTPResponse is returned after a verification attempt.
type VerifyOTPResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	Verified          bool   `json:"verified"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	NextStep          string `json:"next_step,omitempty"`
}

// AuthStatusResponse reports whether a session has a verified contact method.
type AuthStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	SessionID     string `json:"session_id"`
	Identifier    string `json:"identifier,omitempty"`
	Channel       string `json:"channel,omitempty"`
	VerifiedAt    string `json:"verified_at,omitempty"`
	Message       string `json:"message,omitempty"`
}
