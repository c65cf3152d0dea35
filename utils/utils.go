package utils

import (
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsEmail reports whether an identifier is an email address.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// IsValidEmail performs a stricter format check than IsEmail.
func IsValidEmail(identifier string) bool {
	return emailRe.MatchString(identifier)
}

// IdentifierType returns "email" or "phone" for rate-limit bookkeeping.
func IdentifierType(identifier string) string {
	if IsEmail(identifier) {
		return "email"
	}
	return "phone"
}

// ChannelFor returns the delivery channel name for an identifier.
func ChannelFor(identifier string) string {
	if IsEmail(identifier) {
		return "email"
	}
	return "sms"
}

// NormalizePhone reduces a phone number to E.164-ish form: digits only,
// a US country code assumed for bare 10-digit numbers, leading plus.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if len(digits) == 10 {
		digits = "1" + digits
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// NormalizeIdentifier canonicalizes an identifier for storage and
// rate-limit keying.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if IsEmail(identifier) {
		return strings.ToLower(identifier)
	}
	return NormalizePhone(identifier)
}

// CalculateAge returns full years since dob.
func CalculateAge(dob time.Time) int {
	currentTime := time.Now()

	years := currentTime.Year() - dob.Year()
	months := int(currentTime.Month()) - int(dob.Month())
	days := currentTime.Day() - dob.Day()

	if months < 0 {
		years--
		months += 12
	}
	if days < 0 {
		previousMonth := now.With(currentTime).BeginningOfMonth().AddDate(0, 0, -1)
		days += previousMonth.Day()
		months--
		if months < 0 {
			years--
		}
	}

	return years
}
