package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"thaliya-gateway/logger"
	"thaliya-gateway/models/otp"

	"gorm.io/gorm"
)

// Verification reasons, machine-readable.
const (
	ReasonSuccess       = "success"
	ReasonNoActiveCode  = "no_active_code"
	ReasonExpired       = "expired"
	ReasonInvalidFormat = "invalid_format"
	ReasonInvalidCode   = "invalid_code"
	ReasonMaxAttempts   = "max_attempts"
	ReasonMismatch      = "session_mismatch"
	ReasonStorage       = "storage_error"
)

var codeFormat = regexp.MustCompile(`^\d{6}$`)

// VerifyResult is the outcome of one verification attempt.
type VerifyResult struct {
	Valid             bool
	Reason            string
	Message           string
	OTPID             string
	Identifier        string
	Channel           otp.OTPChannel
	AttemptsRemaining int
}

// Service is the OTP engine: generation, salted hashing, persistence with
// expiry, and timing-safe verification. Verification never fails open.
type Service struct {
	DB       *gorm.DB
	Validity time.Duration
}

// NewService creates an OTP engine with the given code validity window.
func NewService(db *gorm.DB, validity time.Duration) *Service {
	return &Service{DB: db, Validity: validity}
}

// GenerateCode returns a uniformly random 6-digit code from a
// cryptographically secure source. Drawn over the full 900000-value range
// so there is no modulo bias toward low values.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to draw random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func generateSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func generateOTPID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate otp id: %w", err)
	}
	return "otp_" + hex.EncodeToString(buf), nil
}

// HashCode produces the stored digest for a code and salt.
func HashCode(code, salt string) string {
	sum := sha256.Sum256([]byte(code + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the digest and compares in constant time.
func VerifyHash(code, storedHash, salt string) bool {
	computed := HashCode(code, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// NormalizeCode strips whitespace and separators from user input before
// format validation and hashing.
func NormalizeCode(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, " ", "")
	input = strings.ReplaceAll(input, "-", "")
	return input
}

// Create generates a new OTP for the session, expiring any prior pending
// one for the session in the same transaction. The plaintext code is
// returned for immediate delivery only and is never persisted.
func (s *Service) Create(sessionID, identifier string, channel otp.OTPChannel, attempts int) (*otp.OTPRequest, string, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, "", err
	}
	salt, err := generateSalt()
	if err != nil {
		return nil, "", err
	}
	otpID, err := generateOTPID()
	if err != nil {
		return nil, "", err
	}

	record := &otp.OTPRequest{
		OTPID:        otpID,
		SessionID:    sessionID,
		Identifier:   identifier,
		Channel:      channel,
		OTPHash:      HashCode(code, salt),
		Salt:         salt,
		AttemptsLeft: attempts,
		Status:       otp.StatusPending,
		ExpiresAt:    time.Now().Add(s.Validity),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Exactly one pending OTP per session: retire the previous one.
		if err := tx.Model(&otp.OTPRequest{}).
			Where("session_id = ? AND status = ?", sessionID, otp.StatusPending).
			Update("status", otp.StatusExpired).Error; err != nil {
			return fmt.Errorf("failed to expire previous OTPs: %w", err)
		}

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create OTP record: %w", err)
		}

		return snapshotEvent(tx, record, "created")
	})
	if err != nil {
		return nil, "", err
	}

	return record, code, nil
}

// VerifySingleAttempt implements the chat wizard policy: the latest
// pending OTP for the session is retired on any attempt, success or
// failure. A second submission always finds no active code.
func (s *Service) VerifySingleAttempt(sessionID, input string) VerifyResult {
	normalized := NormalizeCode(input)
	if !codeFormat.MatchString(normalized) {
		return VerifyResult{Reason: ReasonInvalidFormat, Message: "Verification code must be 6 digits."}
	}

	var result VerifyResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var record otp.OTPRequest
		err := tx.Where("session_id = ? AND status = ?", sessionID, otp.StatusPending).
			Order("created_at DESC").
			First(&record).Error
		if err == gorm.ErrRecordNotFound {
			result = VerifyResult{Reason: ReasonNoActiveCode, Message: "No active verification code found."}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load pending OTP: %w", err)
		}

		result.OTPID = record.OTPID
		result.Identifier = record.Identifier
		result.Channel = record.Channel

		if record.IsExpired() {
			result.Reason = ReasonExpired
			result.Message = "The verification code has expired."
			return retire(tx, &record, otp.StatusExpired, "expired")
		}

		if record.AttemptsLeft <= 0 {
			result.Reason = ReasonMaxAttempts
			result.Message = "The verification code has been expired for security."
			return retire(tx, &record, otp.StatusExpired, "attempts_exhausted")
		}

		if !VerifyHash(normalized, record.OTPHash, record.Salt) {
			// Single attempt: a wrong code retires the OTP immediately.
			result.Reason = ReasonInvalidCode
			result.Message = "The verification code has been expired for security."
			return retire(tx, &record, otp.StatusExpired, "failed_attempt")
		}

		now := time.Now()
		if err := tx.Model(&record).Updates(map[string]interface{}{
			"status":        otp.StatusVerified,
			"attempts_left": 0,
			"verified_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark OTP verified: %w", err)
		}
		record.Status = otp.StatusVerified

		result.Valid = true
		result.Reason = ReasonSuccess
		result.Message = "Verification successful."
		return snapshotEvent(tx, &record, "verified")
	})
	if err != nil {
		logger.Error("OTP verification failed", err)
		return VerifyResult{Reason: ReasonStorage, Message: "Unable to verify the code. Please try again."}
	}
	return result
}

// VerifyByID implements the standalone API policy: attempts_left is
// decremented per failure and the OTP is blocked when it reaches zero.
func (s *Service) VerifyByID(otpID, sessionID, input string) VerifyResult {
	normalized := NormalizeCode(input)
	if !codeFormat.MatchString(normalized) {
		return VerifyResult{Reason: ReasonInvalidFormat, Message: "Verification code must be 6 digits."}
	}

	var result VerifyResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var record otp.OTPRequest
		err := tx.Where("otp_id = ?", otpID).First(&record).Error
		if err == gorm.ErrRecordNotFound {
			result = VerifyResult{Reason: ReasonNoActiveCode, Message: "Invalid or expired verification code."}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load OTP: %w", err)
		}

		result.OTPID = record.OTPID
		result.Identifier = record.Identifier
		result.Channel = record.Channel

		if record.SessionID != sessionID {
			result.Reason = ReasonMismatch
			result.Message = "Session mismatch."
			return nil
		}

		if record.Status != otp.StatusPending {
			result.Reason = ReasonNoActiveCode
			result.Message = "Invalid or expired verification code."
			return nil
		}

		if record.IsExpired() {
			result.Reason = ReasonExpired
			result.Message = "The verification code has expired. Please request a new one."
			return retire(tx, &record, otp.StatusExpired, "expired")
		}

		if !VerifyHash(normalized, record.OTPHash, record.Salt) {
			remaining := record.AttemptsLeft - 1
			result.AttemptsRemaining = remaining
			if remaining <= 0 {
				result.Reason = ReasonMaxAttempts
				result.Message = "Maximum verification attempts exceeded. Please request a new code."
				if err := tx.Model(&record).Update("attempts_left", 0).Error; err != nil {
					return fmt.Errorf("failed to update attempts: %w", err)
				}
				return retire(tx, &record, otp.StatusBlocked, "blocked")
			}

			result.Reason = ReasonInvalidCode
			result.Message = "The verification code has been expired for security."
			if err := tx.Model(&record).Update("attempts_left", remaining).Error; err != nil {
				return fmt.Errorf("failed to update attempts: %w", err)
			}
			return snapshotEvent(tx, &record, "failed_attempt")
		}

		now := time.Now()
		if err := tx.Model(&record).Updates(map[string]interface{}{
			"status":        otp.StatusVerified,
			"attempts_left": 0,
			"verified_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark OTP verified: %w", err)
		}
		record.Status = otp.StatusVerified

		result.Valid = true
		result.Reason = ReasonSuccess
		result.Message = "OTP verified successfully."
		return snapshotEvent(tx, &record, "verified")
	})
	if err != nil {
		logger.Error("OTP verification failed", err)
		return VerifyResult{Reason: ReasonStorage, Message: "Unable to verify the code. Please try again."}
	}
	return result
}

// Cancel marks a pending OTP as cancelled. The session must match.
func (s *Service) Cancel(otpID, sessionID string) VerifyResult {
	var result VerifyResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var record otp.OTPRequest
		err := tx.Where("otp_id = ?", otpID).First(&record).Error
		if err == gorm.ErrRecordNotFound {
			result = VerifyResult{Reason: ReasonNoActiveCode, Message: "OTP not found."}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load OTP: %w", err)
		}

		if record.SessionID != sessionID {
			result = VerifyResult{Reason: ReasonMismatch, Message: "Session mismatch."}
			return nil
		}
		if record.Status != otp.StatusPending {
			result = VerifyResult{Reason: ReasonNoActiveCode, Message: "OTP is no longer pending."}
			return nil
		}

		result = VerifyResult{Valid: true, Reason: ReasonSuccess, Message: "OTP cancelled successfully.", OTPID: otpID}
		return retire(tx, &record, otp.StatusCancelled, "cancelled")
	})
	if err != nil {
		logger.Error("OTP cancellation failed", err)
		return VerifyResult{Reason: ReasonStorage, Message: "Unable to cancel the code."}
	}
	return result
}

// ByID loads an OTP request by its opaque id regardless of status, nil
// if absent.
func (s *Service) ByID(otpID string) (*otp.OTPRequest, error) {
	var record otp.OTPRequest
	err := s.DB.Where("otp_id = ?", otpID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OTP: %w", err)
	}
	return &record, nil
}

// PendingForSession returns the newest pending OTP for a session, nil if
// none.
func (s *Service) PendingForSession(sessionID string) (*otp.OTPRequest, error) {
	var record otp.OTPRequest
	err := s.DB.Where("session_id = ? AND status = ?", sessionID, otp.StatusPending).
		Order("created_at DESC").
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending OTP: %w", err)
	}
	return &record, nil
}

// LatestVerified returns the newest verified OTP for a session, nil if
// none.
func (s *Service) LatestVerified(sessionID string) (*otp.OTPRequest, error) {
	var record otp.OTPRequest
	err := s.DB.Where("session_id = ? AND status = ?", sessionID, otp.StatusVerified).
		Order("created_at DESC").
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verified OTP: %w", err)
	}
	return &record, nil
}

// ExpirePendingForSession retires any pending OTPs for the session, used
// by the wizard restart path.
func (s *Service) ExpirePendingForSession(sessionID string) error {
	return s.DB.Model(&otp.OTPRequest{}).
		Where("session_id = ? AND status = ?", sessionID, otp.StatusPending).
		Update("status", otp.StatusExpired).Error
}

// CleanupExpired marks stale pending rows expired and deletes rows older
// than 24 hours. Maintenance path; errors are returned for logging only.
func (s *Service) CleanupExpired() error {
	if err := s.DB.Model(&otp.OTPRequest{}).
		Where("status = ? AND expires_at < ?", otp.StatusPending, time.Now()).
		Update("status", otp.StatusExpired).Error; err != nil {
		return fmt.Errorf("failed to expire stale OTPs: %w", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	if err := s.DB.Where("created_at < ?", cutoff).Delete(&otp.OTPRequest{}).Error; err != nil {
		return fmt.Errorf("failed to delete old OTPs: %w", err)
	}
	return nil
}

// Stats summarizes OTP outcomes for an identifier over the last 24 hours.
// Non-critical path: callers treat errors as absent statistics.
type Stats struct {
	TotalRequests int64 `json:"total_requests"`
	VerifiedCount int64 `json:"verified_count"`
	ExpiredCount  int64 `json:"expired_count"`
	PendingCount  int64 `json:"pending_count"`
}

func (s *Service) StatsForIdentifier(identifier string) (*Stats, error) {
	since := time.Now().Add(-24 * time.Hour)
	base := func() *gorm.DB {
		return s.DB.Model(&otp.OTPRequest{}).Where("identifier = ? AND created_at > ?", identifier, since)
	}

	var stats Stats
	if err := base().Count(&stats.TotalRequests).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", otp.StatusVerified).Count(&stats.VerifiedCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", otp.StatusExpired).Count(&stats.ExpiredCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", otp.StatusPending).Count(&stats.PendingCount).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// retire moves an OTP out of pending and records the transition.
func retire(tx *gorm.DB, record *otp.OTPRequest, status otp.OTPStatus, eventType string) error {
	if err := tx.Model(record).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update OTP status: %w", err)
	}
	record.Status = status
	return snapshotEvent(tx, record, eventType)
}

// snapshotEvent writes an audit snapshot of the OTP row.
func snapshotEvent(tx *gorm.DB, record *otp.OTPRequest, eventType string) error {
	ev := otp.OTPEvent{
		OTPID:      record.OTPID,
		SessionID:  record.SessionID,
		Identifier: record.Identifier,
		Channel:    record.Channel,
		Status:     record.Status,
		EventType:  eventType,
	}
	return tx.Create(&ev).Error
}
