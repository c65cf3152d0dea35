package authflow

import (
	"regexp"
	"strings"
	"time"

	"thaliya-gateway/utils"

	"github.com/jinzhu/now"
)

var (
	datePattern  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{4}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

	dobFormats = &now.Config{
		TimeFormats: []string{"01/02/2006", "01-02-2006"},
	}
)

// ParsedName is the result of the first wizard step.
type ParsedName struct {
	FirstName string
	LastName  string
}

// ParseName splits free text into first and last name. Requires at least
// two tokens; everything after the first token becomes the last name.
func ParseName(input string) (*ParsedName, bool) {
	words := strings.Fields(strings.TrimSpace(input))
	if len(words) < 2 {
		return nil, false
	}
	return &ParsedName{
		FirstName: capitalize(words[0]),
		LastName:  capitalize(strings.Join(words[1:], " ")),
	}, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// ParsedContact is the result of the second wizard step. Phone is required
// for this flow; email is optional.
type ParsedContact struct {
	DOB   time.Time
	Email string
	Phone string
}

// ParseDOBContact extracts a date of birth (MM/DD/YYYY or MM-DD-YYYY) and
// contact details from free text. Returns false when the date or the
// phone number is missing or malformed.
func ParseDOBContact(input string) (*ParsedContact, bool) {
	dateStr := datePattern.FindString(input)
	if dateStr == "" {
		return nil, false
	}
	dob, err := dobFormats.Parse(strings.ReplaceAll(dateStr, "-", "/"))
	if err != nil {
		return nil, false
	}

	// Strip the date before matching the phone, otherwise a birth year
	// can collide with the phone pattern.
	remainder := strings.Replace(input, dateStr, "", 1)

	phone := phonePattern.FindString(remainder)
	if phone == "" {
		return nil, false
	}

	return &ParsedContact{
		DOB:   dob,
		Email: emailPattern.FindString(remainder),
		Phone: utils.NormalizePhone(phone),
	}, true
}

var resendKeywords = map[string]bool{
	"new otp":     true,
	"resend":      true,
	"resend otp":  true,
	"new code":    true,
	"resend code": true,
}

var restartKeywords = map[string]bool{
	"restart":     true,
	"start over":  true,
	"begin again": true,
}

// IsResendKeyword reports whether the input asks for a fresh code.
func IsResendKeyword(input string) bool {
	return resendKeywords[strings.ToLower(strings.TrimSpace(input))]
}

// IsRestartKeyword reports whether the input asks to restart the wizard.
func IsRestartKeyword(input string) bool {
	return restartKeywords[strings.ToLower(strings.TrimSpace(input))]
}

var continueKeywords = map[string]bool{
	"continue": true,
	"resume":   true,
	"go on":    true,
}

// IsContinueKeyword reports whether the input resumes a paused wizard.
func IsContinueKeyword(input string) bool {
	return continueKeywords[strings.ToLower(strings.TrimSpace(input))]
}

var questionWords = []string{"what", "when", "where", "who", "why", "how", "can i", "do you", "is there", "are there"}

// LooksLikeQuestion is the heuristic for detecting an off-topic general
// question asked mid-wizard. A name or DOB entry never matches; a
// question mark or a leading interrogative does.
func LooksLikeQuestion(input string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	for _, w := range questionWords {
		if strings.HasPrefix(trimmed, w+" ") {
			return true
		}
	}
	return false
}

// ExtractTicketType categorizes a support request by keyword.
func ExtractTicketType(query string) string {
	lower := strings.ToLower(query)
	types := []struct {
		name     string
		keywords []string
	}{
		{"prescription_refill", []string{"prescription", "refill", "medication"}},
		{"billing", []string{"billing", "bill", "payment", "insurance"}},
		{"lab_results", []string{"result", "lab", "test"}},
		{"referral", []string{"referral", "specialist"}},
	}
	for _, t := range types {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.name
			}
		}
	}
	return "general_support"
}

// ExtractAppointmentType categorizes an appointment request by keyword.
func ExtractAppointmentType(query string) string {
	lower := strings.ToLower(query)
	types := []struct {
		name     string
		keywords []string
	}{
		{"cardiology", []string{"cardio", "heart", "chest pain"}},
		{"dental", []string{"dental", "tooth", "teeth"}},
		{"ophthalmology", []string{"eye", "vision", "glasses"}},
		{"dermatology", []string{"skin", "rash", "dermat"}},
		{"general_checkup", []string{"check", "physical", "routine"}},
	}
	for _, t := range types {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.name
			}
		}
	}
	return "general"
}

// TicketPriority ranks a support request by urgency keywords.
func TicketPriority(query string) string {
	lower := strings.ToLower(query)
	for _, w := range []string{"urgent", "emergency", "pain", "bleeding"} {
		if strings.Contains(lower, w) {
			return "high"
		}
	}
	for _, w := range []string{"soon", "important", "medication"} {
		if strings.Contains(lower, w) {
			return "medium"
		}
	}
	return "low"
}
