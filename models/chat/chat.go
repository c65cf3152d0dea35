package chat

import (
	"time"
)

// ChatHistory is one guest/bot exchange. Sensitive turns (auth steps)
// store a redaction marker instead of the raw user input.
type ChatHistory struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string    `gorm:"type:varchar(64);not null;index" json:"session_id"`
	UserQuery    string    `gorm:"type:text" json:"user_query"`
	BotResponse  string    `gorm:"type:text" json:"bot_response"`
	SessionState string    `gorm:"type:varchar(30)" json:"session_state"`
	Intent       string    `gorm:"type:varchar(50)" json:"intent"`
	IsSensitive  bool      `gorm:"default:false" json:"is_sensitive"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ChatHistory) TableName() string {
	return "guest_chat_history"
}
