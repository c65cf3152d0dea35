package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"thaliya-gateway/models/chat"
	"thaliya-gateway/models/session"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Manager is the durable guest session store. Sessions are database rows
// so any gateway instance can serve the guest's next request.
type Manager struct {
	DB  *gorm.DB
	TTL time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(db *gorm.DB, ttl time.Duration) *Manager {
	return &Manager{
		DB:    db,
		TTL:   ttl,
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock serializes mutations for one session within this process. One
// guest, one conversation: requests for a session are expected serially,
// and this keeps a stray concurrent pair from interleaving writes.
func (m *Manager) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Create opens a new guest session with status active and a fresh TTL.
func (m *Manager) Create() (*session.GuestSession, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	record := &session.GuestSession{
		SessionID:    "guest_" + hex.EncodeToString(buf),
		Status:       session.StatusActive,
		ExpiresAt:    time.Now().Add(m.TTL),
		LastActivity: time.Now(),
	}
	if err := m.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create guest session: %w", err)
	}
	return record, nil
}

// Get loads a session row, nil if absent.
func (m *Manager) Get(sessionID string) (*session.GuestSession, error) {
	var record session.GuestSession
	err := m.DB.Where("session_id = ?", sessionID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &record, nil
}

// Validate reports whether a session exists and is not expired. Expiry is
// checked at read time against the expires_at column.
func (m *Manager) Validate(sessionID string) (bool, error) {
	record, err := m.Get(sessionID)
	if err != nil {
		return false, err
	}
	if record == nil || record.IsExpired() || record.Status == session.StatusExpired {
		return false, nil
	}
	return true, nil
}

// Touch refreshes last_activity and slides the TTL forward.
func (m *Manager) Touch(sessionID string) error {
	now := time.Now()
	return m.DB.Model(&session.GuestSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"last_activity": now,
			"expires_at":    now.Add(m.TTL),
		}).Error
}

// UpdateStatus moves the session to a new wizard state.
func (m *Manager) UpdateStatus(sessionID string, status session.SessionStatus) error {
	return m.DB.Model(&session.GuestSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":        status,
			"last_activity": time.Now(),
		}).Error
}

// CreateAuthenticatedLink records that the guest session now belongs to a
// verified user.
func (m *Manager) CreateAuthenticatedLink(sessionID string, userID uint) (*session.AuthenticatedUserSession, error) {
	link := &session.AuthenticatedUserSession{
		LinkID:    uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(m.TTL),
	}
	if err := m.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create authenticated session link: %w", err)
	}
	return link, nil
}

// AuthenticatedLink returns the newest unexpired link for a session, nil
// if none.
func (m *Manager) AuthenticatedLink(sessionID string) (*session.AuthenticatedUserSession, error) {
	var link session.AuthenticatedUserSession
	err := m.DB.Where("session_id = ? AND expires_at > ?", sessionID, time.Now()).
		Order("created_at DESC").
		First(&link).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load authenticated session: %w", err)
	}
	return &link, nil
}

// StoreChatHistory persists one exchange. Sensitive turns carry a
// redaction marker in place of the raw user input.
func (m *Manager) StoreChatHistory(sessionID, userQuery, botResponse string, state session.SessionStatus, intent string, isSensitive bool) {
	entry := chat.ChatHistory{
		SessionID:    sessionID,
		UserQuery:    userQuery,
		BotResponse:  botResponse,
		SessionState: string(state),
		Intent:       intent,
		IsSensitive:  isSensitive,
	}
	// History is best effort; a write failure never reaches the guest.
	m.DB.Create(&entry)
}

// History returns the most recent exchanges for a session, newest first.
func (m *Manager) History(sessionID string, limit int) ([]chat.ChatHistory, error) {
	var entries []chat.ChatHistory
	err := m.DB.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return entries, nil
}

// CleanupExpired removes expired sessions and their user links.
func (m *Manager) CleanupExpired() error {
	now := time.Now()
	if err := m.DB.Where("expires_at < ?", now).Delete(&session.GuestSession{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if err := m.DB.Where("expires_at < ?", now).Delete(&session.AuthenticatedUserSession{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired authenticated sessions: %w", err)
	}
	return nil
}
