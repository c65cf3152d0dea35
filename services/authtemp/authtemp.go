package authtemp

import (
	"fmt"
	"time"

	"thaliya-gateway/models/authtemp"

	"gorm.io/gorm"
)

// Store manages the per-session auth wizard scratchpad. Each session has
// at most one record; it accumulates identity details across wizard
// turns and is discarded on completion or restart.
type Store struct {
	DB  *gorm.DB
	TTL time.Duration
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{DB: db, TTL: ttl}
}

// Begin starts a wizard pass for the session, replacing any stale record
// from an earlier abandoned attempt. The original intent and query are
// stashed so the interrupted request can resume after authentication.
func (s *Store) Begin(sessionID, firstName, lastName, originalIntent, originalQuery string) (*authtemp.AuthTempRecord, error) {
	record := &authtemp.AuthTempRecord{
		SessionID:      sessionID,
		FirstName:      firstName,
		LastName:       lastName,
		OriginalIntent: originalIntent,
		OriginalQuery:  originalQuery,
		ExpiresAt:      time.Now().Add(s.TTL),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&authtemp.AuthTempRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start auth record: %w", err)
	}
	return record, nil
}

// Get loads the session's scratchpad, nil if none.
func (s *Store) Get(sessionID string) (*authtemp.AuthTempRecord, error) {
	var record authtemp.AuthTempRecord
	err := s.DB.Where("session_id = ?", sessionID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load auth record: %w", err)
	}
	if time.Now().After(record.ExpiresAt) {
		s.DB.Delete(&record)
		return nil, nil
	}
	return &record, nil
}

// SetNames records the first wizard step on an existing record, keeping
// the stashed intent intact.
func (s *Store) SetNames(sessionID, firstName, lastName string) error {
	return s.update(sessionID, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	})
}

// SetContact records the second wizard step: date of birth plus the
// contact point chosen for OTP delivery.
func (s *Store) SetContact(sessionID string, dob time.Time, email, phone, channel string) error {
	return s.update(sessionID, map[string]interface{}{
		"dob":                   dob,
		"email":                 email,
		"phone":                 phone,
		"preferred_otp_channel": channel,
	})
}

// SetUserID pins the scratchpad to an existing user found by identity
// match, so OTP success links instead of creating a duplicate.
func (s *Store) SetUserID(sessionID string, userID uint) error {
	return s.update(sessionID, map[string]interface{}{"user_id": userID})
}

// SetPausedState remembers which wizard step was interrupted by an
// off-topic question, so "continue" can restore it.
func (s *Store) SetPausedState(sessionID, state string) error {
	return s.update(sessionID, map[string]interface{}{"auth_paused_state": state})
}

// ClearPausedState drops the interruption marker once the wizard resumes.
func (s *Store) ClearPausedState(sessionID string) error {
	return s.update(sessionID, map[string]interface{}{"auth_paused_state": ""})
}

func (s *Store) update(sessionID string, values map[string]interface{}) error {
	result := s.DB.Model(&authtemp.AuthTempRecord{}).
		Where("session_id = ?", sessionID).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update auth record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no auth record for session")
	}
	return nil
}

// Delete removes the scratchpad. Called on wizard completion, restart,
// and abort; plaintext identity details must not outlive the flow.
func (s *Store) Delete(sessionID string) error {
	return s.DB.Where("session_id = ?", sessionID).Delete(&authtemp.AuthTempRecord{}).Error
}

// CleanupExpired sweeps abandoned wizard records.
func (s *Store) CleanupExpired() error {
	return s.DB.Where("expires_at < ?", time.Now()).Delete(&authtemp.AuthTempRecord{}).Error
}
