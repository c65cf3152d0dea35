package ratelimit

import (
	"fmt"
	"time"

	"thaliya-gateway/logger"
	"thaliya-gateway/models/ratelimit"

	"gorm.io/gorm"
)

// CheckResult reports whether an OTP request is allowed for an
// identifier, and if not, how long the caller must wait.
type CheckResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Reason     string
}

// Status is a quota snapshot for the rate-limit endpoint.
type Status struct {
	Identifier     string `json:"identifier"`
	CurrentCount   int64  `json:"current_count"`
	MaxRequests    int    `json:"max_requests"`
	Remaining      int    `json:"remaining"`
	ResetInSeconds int    `json:"reset_in_seconds"`
	IsBlocked      bool   `json:"is_blocked"`
}

// Limiter tracks OTP request counts per contact identifier within a
// sliding window, one row per request. Check errors fail open: blocking
// legitimate guests on a storage hiccup is worse than letting one extra
// request through.
type Limiter struct {
	DB            *gorm.DB
	Window        time.Duration
	MaxRequests   int
	BlockDuration time.Duration
	MinRetryAfter time.Duration
}

// NewLimiter creates a limiter with the given window and threshold.
func NewLimiter(db *gorm.DB, window time.Duration, maxRequests int, blockDuration, minRetryAfter time.Duration) *Limiter {
	return &Limiter{
		DB:            db,
		Window:        window,
		MaxRequests:   maxRequests,
		BlockDuration: blockDuration,
		MinRetryAfter: minRetryAfter,
	}
}

// Check counts requests for the identifier in the trailing window. Once
// the threshold is reached the identifier is blocked and retry-after is
// measured from the oldest request in the violating window, floored at
// MinRetryAfter.
func (l *Limiter) Check(identifier, identifierType string) CheckResult {
	now := time.Now()
	since := now.Add(-l.Window)

	// An explicit block outlives the sliding count.
	var blocked ratelimit.RateLimitRecord
	err := l.DB.Where("identifier = ? AND identifier_type = ? AND blocked_until > ?", identifier, identifierType, now).
		Order("blocked_until DESC").
		First(&blocked).Error
	if err == nil && blocked.BlockedUntil != nil {
		return CheckResult{
			Allowed:    false,
			RetryAfter: blocked.BlockedUntil.Sub(now),
			Reason:     "blocked",
		}
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		logger.Error("Rate limit block check failed, allowing request", err)
		return CheckResult{Allowed: true, Remaining: l.MaxRequests, Reason: "check_failed"}
	}

	var count int64
	if err := l.DB.Model(&ratelimit.RateLimitRecord{}).
		Where("identifier = ? AND identifier_type = ? AND created_at > ?", identifier, identifierType, since).
		Count(&count).Error; err != nil {
		logger.Error("Rate limit count failed, allowing request", err)
		return CheckResult{Allowed: true, Remaining: l.MaxRequests, Reason: "check_failed"}
	}

	if count < int64(l.MaxRequests) {
		return CheckResult{
			Allowed:   true,
			Remaining: l.MaxRequests - int(count),
			Reason:    "within_limit",
		}
	}

	// Threshold crossed: set the block and compute retry-after from the
	// oldest request in the window, not from now.
	retryAfter := l.retryAfter(identifier, identifierType, since, now)
	blockedUntil := now.Add(l.BlockDuration)
	if err := l.DB.Model(&ratelimit.RateLimitRecord{}).
		Where("identifier = ? AND identifier_type = ? AND created_at > ?", identifier, identifierType, since).
		Update("blocked_until", blockedUntil).Error; err != nil {
		logger.Error("Failed to set rate limit block", err)
	}

	return CheckResult{
		Allowed:    false,
		RetryAfter: retryAfter,
		Reason:     "rate_limit_exceeded",
	}
}

func (l *Limiter) retryAfter(identifier, identifierType string, since, now time.Time) time.Duration {
	var oldest ratelimit.RateLimitRecord
	err := l.DB.Where("identifier = ? AND identifier_type = ? AND created_at > ?", identifier, identifierType, since).
		Order("created_at ASC").
		First(&oldest).Error
	if err != nil {
		return l.Window
	}

	retryAfter := oldest.CreatedAt.Add(l.Window).Sub(now)
	if retryAfter < l.MinRetryAfter {
		retryAfter = l.MinRetryAfter
	}
	return retryAfter
}

// Reserve runs the check and the increment in one transaction so two
// concurrent requests from the same identifier cannot both slip under the
// threshold. Failures of the whole transaction fail open.
func (l *Limiter) Reserve(identifier, identifierType string) CheckResult {
	var result CheckResult
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		inner := Limiter{
			DB:            tx,
			Window:        l.Window,
			MaxRequests:   l.MaxRequests,
			BlockDuration: l.BlockDuration,
			MinRetryAfter: l.MinRetryAfter,
		}
		result = inner.Check(identifier, identifierType)
		if !result.Allowed {
			return nil
		}
		record := ratelimit.RateLimitRecord{
			Identifier:     identifier,
			IdentifierType: identifierType,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		result.Remaining--
		return nil
	})
	if err != nil {
		logger.Error("Rate limit reservation failed, allowing request", err)
		return CheckResult{Allowed: true, Remaining: l.MaxRequests, Reason: "check_failed"}
	}
	return result
}

// Record stores one request event. Called exactly once per successful OTP
// generation. Failures are logged, not surfaced: bookkeeping must not
// break the flow.
func (l *Limiter) Record(identifier, identifierType string) {
	record := ratelimit.RateLimitRecord{
		Identifier:     identifier,
		IdentifierType: identifierType,
	}
	if err := l.DB.Create(&record).Error; err != nil {
		logger.Error("Failed to record rate limit event", err)
	}
}

// Reset deletes all counters for one identifier. Administrative/testing
// escape hatch; never routed to guest-facing endpoints.
func (l *Limiter) Reset(identifier, identifierType string) error {
	if err := l.DB.Where("identifier = ? AND identifier_type = ?", identifier, identifierType).
		Delete(&ratelimit.RateLimitRecord{}).Error; err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", identifier, err)
	}
	return nil
}

// StatusFor returns the current quota snapshot for an identifier.
func (l *Limiter) StatusFor(identifier, identifierType string) (*Status, error) {
	now := time.Now()
	since := now.Add(-l.Window)

	var count int64
	if err := l.DB.Model(&ratelimit.RateLimitRecord{}).
		Where("identifier = ? AND identifier_type = ? AND created_at > ?", identifier, identifierType, since).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count rate limit records: %w", err)
	}

	status := &Status{
		Identifier:   identifier,
		CurrentCount: count,
		MaxRequests:  l.MaxRequests,
	}
	if remaining := l.MaxRequests - int(count); remaining > 0 {
		status.Remaining = remaining
	}

	if count >= int64(l.MaxRequests) {
		status.IsBlocked = true
		status.ResetInSeconds = int(l.retryAfter(identifier, identifierType, since, now).Seconds())
	}
	return status, nil
}

// CleanupOld deletes records older than the retention cutoff. Maintenance
// path.
func (l *Limiter) CleanupOld() error {
	cutoff := time.Now().Add(-24 * time.Hour)
	if err := l.DB.Where("created_at < ? AND (blocked_until IS NULL OR blocked_until < ?)", cutoff, time.Now()).
		Delete(&ratelimit.RateLimitRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean up rate limit records: %w", err)
	}
	return nil
}
