package authtemp

import (
	"time"
)

// AuthTempRecord is the one-per-session scratch record for the auth
// wizard. While UserID is nil the guest must not be treated as an
// existing account; creation is deferred until OTP success. Deleted on
// success or restart, swept on expiry.
type AuthTempRecord struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID           string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_id"`
	FirstName           string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName            string     `gorm:"type:varchar(100)" json:"last_name"`
	DOB                 *time.Time `gorm:"type:date" json:"dob,omitempty"`
	Email               string     `gorm:"type:varchar(255)" json:"email"`
	Phone               string     `gorm:"type:varchar(20)" json:"phone"`
	PreferredOTPChannel string     `gorm:"type:varchar(10)" json:"preferred_otp_channel"`
	UserID              *uint      `gorm:"index" json:"user_id,omitempty"`
	OriginalIntent      string     `gorm:"type:varchar(50)" json:"original_intent"`
	OriginalQuery       string     `gorm:"type:text" json:"original_query"`
	AuthPausedState     string     `gorm:"type:varchar(30)" json:"auth_paused_state"`
	ExpiresAt           time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AuthTempRecord) TableName() string {
	return "guest_auth_temp"
}
