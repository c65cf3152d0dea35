package auth

// TokenRequest is the OAuth2 client-credentials grant payload.
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// TokenResponse is returned on a successful credentials grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	ServiceName string `json:"service_name"`
}

// VerifyResponse describes a decoded bearer token.
type VerifyResponse struct {
	Valid     bool   `json:"valid"`
	Service   string `json:"service,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
