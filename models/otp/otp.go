package otp

import (
	"time"
)

// OTPStatus tracks an OTP request through its lifecycle. Terminal states
// are verified, expired, cancelled and blocked.
type OTPStatus string

const (
	StatusPending   OTPStatus = "pending"
	StatusVerified  OTPStatus = "verified"
	StatusExpired   OTPStatus = "expired"
	StatusCancelled OTPStatus = "cancelled"
	StatusBlocked   OTPStatus = "blocked"
)

// OTPChannel is the delivery channel for a code.
type OTPChannel string

const (
	ChannelEmail OTPChannel = "email"
	ChannelSMS   OTPChannel = "sms"
)

// OTPRequest stores a salted hash of a generated code. The plaintext code
// is never persisted. At most one pending row may exist per session;
// creating a new one expires the prior pending one.
type OTPRequest struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OTPID        string     `gorm:"column:otp_id;type:varchar(50);not null;uniqueIndex" json:"otp_id"`
	SessionID    string     `gorm:"type:varchar(64);not null;index" json:"session_id"`
	Identifier   string     `gorm:"type:varchar(255);not null;index" json:"identifier"`
	Channel      OTPChannel `gorm:"type:varchar(10);not null" json:"channel"`
	OTPHash      string     `gorm:"column:otp_hash;type:varchar(256);not null" json:"-"`
	Salt         string     `gorm:"type:varchar(50);not null" json:"-"`
	AttemptsLeft int        `gorm:"not null;default:1" json:"attempts_left"`
	Status       OTPStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OTPRequest) TableName() string {
	return "otp_requests"
}

// IsExpired checks the row against wall-clock time; expiry is data, not a
// scheduled task.
func (o *OTPRequest) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsPending reports whether the code can still be attempted.
func (o *OTPRequest) IsPending() bool {
	return o.Status == StatusPending && !o.IsExpired()
}

// OTPEvent is an audit snapshot of an OTP row at a lifecycle transition.
type OTPEvent struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OTPID      string     `gorm:"column:otp_id;type:varchar(50);not null;index" json:"otp_id"`
	SessionID  string     `gorm:"type:varchar(64);not null;index" json:"session_id"`
	Identifier string     `gorm:"type:varchar(255);not null" json:"identifier"`
	Channel    OTPChannel `gorm:"type:varchar(10);not null" json:"channel"`
	Status     OTPStatus  `gorm:"type:varchar(20);not null" json:"status"`
	EventType  string     `gorm:"type:varchar(50);not null" json:"event_type"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (OTPEvent) TableName() string {
	return "otp_events"
}
