package chatbot

// GuestSessionResponse is returned when a new guest session is created.
type GuestSessionResponse struct {
	SessionToken string `json:"session_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// GuestChatRequest is one guest turn in the conversation.
type GuestChatRequest struct {
	UserQuery    string `json:"user_query" validate:"required"`
	SessionToken string `json:"session_token" validate:"required"`
}

// GuestChatResponse mirrors an orchestrator step result. Output is safe to
// render directly in a chat bubble; the remaining fields are for the UI.
type GuestChatResponse struct {
	Success         bool     `json:"success"`
	Intent          string   `json:"intent"`
	Output          string   `json:"output"`
	SessionToken    string   `json:"session_token,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"`
	ValidationError bool     `json:"validation_error,omitempty"`
	RateLimited     bool     `json:"rate_limited,omitempty"`
	RetryAfter      int      `json:"retry_after,omitempty"`
	Authenticated   bool     `json:"authenticated,omitempty"`
	UserID          *uint    `json:"user_id,omitempty"`
	UserCreated     bool     `json:"user_created,omitempty"`
	Restarted       bool     `json:"restarted,omitempty"`
	OTPResent       bool     `json:"otp_resent,omitempty"`
	Paused          bool     `json:"paused,omitempty"`
	Resumed         bool     `json:"resumed,omitempty"`
	RequiresAuth    bool     `json:"requires_auth,omitempty"`
	OriginalIntent  string   `json:"original_intent,omitempty"`
	Options         []string `json:"options,omitempty"`
}
