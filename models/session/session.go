package session

import (
	"time"
)

// SessionStatus names the wizard step a guest conversation occupies.
// Stored in the database so any gateway instance can resume the flow.
type SessionStatus string

const (
	StatusActive              SessionStatus = "active"
	StatusAwaitingAuthDetails SessionStatus = "awaiting_auth_details"
	StatusAwaitingDOBEmail    SessionStatus = "awaiting_dob_email"
	StatusAwaitingOTP         SessionStatus = "awaiting_otp"
	StatusAuthenticated       SessionStatus = "authenticated"
	StatusAuthPaused          SessionStatus = "auth_paused"
	StatusBookingAppointment  SessionStatus = "booking_appointment"
	StatusCreatingTicket      SessionStatus = "creating_ticket"
	StatusExpired             SessionStatus = "expired"
)

// AuthStates are the statuses that belong to the in-progress auth wizard.
var AuthStates = []SessionStatus{
	StatusAwaitingAuthDetails,
	StatusAwaitingDOBEmail,
	StatusAwaitingOTP,
}

// GuestSession is a pre-authentication conversational session. TTL is
// refreshed on activity; expired rows are garbage-collected by the
// maintenance sweep.
type GuestSession struct {
	ID           uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_id"`
	Status       SessionStatus `gorm:"type:varchar(30);not null;default:'active';index" json:"status"`
	ExpiresAt    time.Time     `gorm:"not null;index" json:"expires_at"`
	LastActivity time.Time     `gorm:"not null" json:"last_activity"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GuestSession) TableName() string {
	return "guest_sessions"
}

// IsExpired checks the row against wall-clock time.
func (s *GuestSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthenticatedUserSession links a guest session to a verified user after
// OTP success.
type AuthenticatedUserSession struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LinkID    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"link_id"`
	SessionID string    `gorm:"type:varchar(64);not null;index" json:"session_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuthenticatedUserSession) TableName() string {
	return "authenticated_user_sessions"
}
