package user

import (
	"time"
)

// User is a verified patient identity. A row is created only after a
// successful OTP verification for a previously unknown identity.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName string    `gorm:"type:varchar(100);not null;index" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100);not null;index" json:"last_name"`
	DOB       time.Time `gorm:"type:date;not null" json:"dob"`
	Email     *string   `gorm:"type:varchar(255);index" json:"email,omitempty"`
	Phone     *string   `gorm:"type:varchar(20);index" json:"phone,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
