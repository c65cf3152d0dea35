package ratelimit

import (
	"time"
)

// RateLimitRecord is one OTP generation event for an identifier. Requests
// inside the trailing window are counted row-by-row; BlockedUntil is set
// on the newest row once the threshold is crossed.
type RateLimitRecord struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Identifier     string     `gorm:"type:varchar(255);not null;index:idx_otp_rate_limits_ident" json:"identifier"`
	IdentifierType string     `gorm:"type:varchar(10);not null;index:idx_otp_rate_limits_ident" json:"identifier_type"`
	BlockedUntil   *time.Time `gorm:"index" json:"blocked_until,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (RateLimitRecord) TableName() string {
	return "otp_rate_limits"
}
