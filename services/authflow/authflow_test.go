package authflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"thaliya-gateway/constants"
	"thaliya-gateway/database"
	authtempmodel "thaliya-gateway/models/authtemp"
	otpmodel "thaliya-gateway/models/otp"
	ratelimitmodel "thaliya-gateway/models/ratelimit"
	sessionmodel "thaliya-gateway/models/session"
	usermodel "thaliya-gateway/models/user"
	"thaliya-gateway/services/authtemp"
	"thaliya-gateway/services/chat"
	otpsvc "thaliya-gateway/services/otp"
	"thaliya-gateway/services/ratelimit"
	sessionsvc "thaliya-gateway/services/session"
	usersvc "thaliya-gateway/services/user"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// captureSender records the last delivered code instead of sending it.
type captureSender struct {
	lastIdentifier string
	lastChannel    string
	lastCode       string
	sendCount      int
	fail           bool
}

func (s *captureSender) SendOTP(ctx context.Context, identifier, channel, code string) error {
	if s.fail {
		return errors.New("provider unavailable")
	}
	s.lastIdentifier = identifier
	s.lastChannel = channel
	s.lastCode = code
	s.sendCount++
	return nil
}

type fixture struct {
	db       *gorm.DB
	orc      *Orchestrator
	sessions *sessionsvc.Manager
	sender   *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sessions := sessionsvc.NewManager(db, time.Hour)
	sender := &captureSender{}
	orc := &Orchestrator{
		Sessions:       sessions,
		Temp:           authtemp.NewStore(db, 30*time.Minute),
		OTP:            otpsvc.NewService(db, 5*time.Minute),
		Limiter:        ratelimit.NewLimiter(db, time.Hour, 5, 30*time.Minute, time.Minute),
		Users:          usersvc.NewService(db),
		Delivery:       sender,
		Chat:           chat.NewResponder(context.Background(), ""),
		WizardAttempts: 1,
	}
	return &fixture{db: db, orc: orc, sessions: sessions, sender: sender}
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	record, err := f.sessions.Create()
	require.NoError(t, err)
	return record.SessionID
}

func (f *fixture) status(t *testing.T, sessionID string) sessionmodel.SessionStatus {
	t.Helper()
	record, err := f.sessions.Get(sessionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	return record.Status
}

func (f *fixture) userCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&usermodel.User{}).Count(&count).Error)
	return count
}

func TestAppointmentIntentStartsWizard(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	resp := f.orc.Process(context.Background(), sessionID, "I want to book an appointment")
	assert.True(t, resp.Success)
	assert.True(t, resp.RequiresAuth)
	assert.Equal(t, constants.IntentAppointment, resp.OriginalIntent)
	assert.Equal(t, sessionmodel.StatusAwaitingAuthDetails, f.status(t, sessionID))

	var temp authtempmodel.AuthTempRecord
	require.NoError(t, f.db.Where("session_id = ?", sessionID).First(&temp).Error)
	assert.Equal(t, constants.IntentAppointment, temp.OriginalIntent)
	assert.Equal(t, "I want to book an appointment", temp.OriginalQuery)
}

func TestInfoQuestionAnsweredWithoutAuth(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	resp := f.orc.Process(context.Background(), sessionID, "what are your opening hours")
	assert.True(t, resp.Success)
	assert.False(t, resp.RequiresAuth)
	assert.Contains(t, resp.Output, "8:00 AM")
	assert.Equal(t, sessionmodel.StatusActive, f.status(t, sessionID))
}

func TestStep1Determinism(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)
	f.orc.Process(context.Background(), sessionID, "book an appointment")

	// A single token re-prompts without advancing.
	resp := f.orc.Process(context.Background(), sessionID, "John")
	assert.True(t, resp.ValidationError)
	assert.Equal(t, sessionmodel.StatusAwaitingAuthDetails, f.status(t, sessionID))

	// A full name advances and is recorded capitalized.
	resp = f.orc.Process(context.Background(), sessionID, "John Smith")
	assert.False(t, resp.ValidationError)
	assert.Equal(t, sessionmodel.StatusAwaitingDOBEmail, f.status(t, sessionID))

	var temp authtempmodel.AuthTempRecord
	require.NoError(t, f.db.Where("session_id = ?", sessionID).First(&temp).Error)
	assert.Equal(t, "John", temp.FirstName)
	assert.Equal(t, "Smith", temp.LastName)
}

func TestStep2RequiresPhone(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)
	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")

	resp := f.orc.Process(context.Background(), sessionID, "03/12/1985 jane@example.com")
	assert.True(t, resp.ValidationError)
	assert.Equal(t, sessionmodel.StatusAwaitingDOBEmail, f.status(t, sessionID))
}

func TestEndToEndNewUser(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "I want to book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")

	resp := f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	assert.True(t, resp.Success)
	assert.Equal(t, sessionmodel.StatusAwaitingOTP, f.status(t, sessionID))
	assert.Contains(t, resp.Output, "create your profile")

	// Exactly one pending OTP for the normalized phone.
	var pending []otpmodel.OTPRequest
	require.NoError(t, f.db.Where("session_id = ? AND status = ?", sessionID, otpmodel.StatusPending).Find(&pending).Error)
	require.Len(t, pending, 1)
	assert.Equal(t, "+15551112222", pending[0].Identifier)
	assert.Equal(t, "+15551112222", f.sender.lastIdentifier)

	// No user exists until the code is verified.
	assert.Equal(t, int64(0), f.userCount(t))

	resp = f.orc.Process(context.Background(), sessionID, f.sender.lastCode)
	assert.True(t, resp.Success)
	assert.True(t, resp.Authenticated)
	assert.True(t, resp.UserCreated)
	assert.Equal(t, constants.FlowBookingAppointment, resp.Intent)
	assert.Contains(t, resp.Output, "I want to book an appointment")
	assert.Equal(t, sessionmodel.StatusBookingAppointment, f.status(t, sessionID))

	// Deferred creation happened exactly once.
	require.Equal(t, int64(1), f.userCount(t))
	var created usermodel.User
	require.NoError(t, f.db.First(&created).Error)
	assert.Equal(t, "Jane", created.FirstName)
	assert.Equal(t, "Doe", created.LastName)
	require.NotNil(t, created.Phone)
	assert.Equal(t, "+15551112222", *created.Phone)

	// Scratchpad is gone.
	var tempCount int64
	require.NoError(t, f.db.Model(&authtempmodel.AuthTempRecord{}).Where("session_id = ?", sessionID).Count(&tempCount).Error)
	assert.Equal(t, int64(0), tempCount)

	// The booking follow-up completes and settles into authenticated.
	resp = f.orc.Process(context.Background(), sessionID, "a cardiology appointment please")
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Output, "cardiology")
	assert.Equal(t, sessionmodel.StatusAuthenticated, f.status(t, sessionID))
}

func TestExistingUserIsReusedNotDuplicated(t *testing.T) {
	f := newFixture(t)

	contact, ok := ParseDOBContact("03/12/1985 (555) 111-2222")
	require.True(t, ok)
	existing, err := f.orc.Users.Create("Jane", "Doe", contact.DOB, "", contact.Phone)
	require.NoError(t, err)

	sessionID := f.newSession(t)
	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")

	resp := f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	assert.Contains(t, resp.Output, "Welcome back")

	resp = f.orc.Process(context.Background(), sessionID, f.sender.lastCode)
	assert.True(t, resp.Authenticated)
	assert.False(t, resp.UserCreated)
	require.NotNil(t, resp.UserID)
	assert.Equal(t, existing.ID, *resp.UserID)
	assert.Equal(t, int64(1), f.userCount(t))
}

func TestFailedOTPCreatesNoUser(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")
	f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")

	wrong := "000000"
	if wrong == f.sender.lastCode {
		wrong = "000001"
	}

	resp := f.orc.Process(context.Background(), sessionID, wrong)
	assert.False(t, resp.Authenticated)
	assert.Contains(t, resp.Output, "expired for security")
	assert.Equal(t, int64(0), f.userCount(t))

	// The single attempt is spent; the real code is dead too.
	resp = f.orc.Process(context.Background(), sessionID, f.sender.lastCode)
	assert.False(t, resp.Authenticated)
	assert.Equal(t, int64(0), f.userCount(t))
}

func TestResendIssuesFreshCode(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")
	f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	firstCode := f.sender.lastCode

	resp := f.orc.Process(context.Background(), sessionID, "new otp")
	assert.True(t, resp.OTPResent)
	assert.Equal(t, 2, f.sender.sendCount)
	assert.NotEqual(t, firstCode, f.sender.lastCode)

	// The replacement code authenticates.
	resp = f.orc.Process(context.Background(), sessionID, f.sender.lastCode)
	assert.True(t, resp.Authenticated)
}

func TestRestartWipesWizardState(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")
	f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")

	resp := f.orc.Process(context.Background(), sessionID, "restart")
	assert.True(t, resp.Restarted)
	assert.Equal(t, sessionmodel.StatusAwaitingAuthDetails, f.status(t, sessionID))

	var tempCount int64
	require.NoError(t, f.db.Model(&authtempmodel.AuthTempRecord{}).Where("session_id = ?", sessionID).Count(&tempCount).Error)
	assert.Equal(t, int64(0), tempCount)

	var pendingCount int64
	require.NoError(t, f.db.Model(&otpmodel.OTPRequest{}).
		Where("session_id = ? AND status = ?", sessionID, otpmodel.StatusPending).
		Count(&pendingCount).Error)
	assert.Equal(t, int64(0), pendingCount)
}

func TestRateLimitBlocksOTPAndHoldsState(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	// Exhaust the identifier's quota before the wizard reaches the OTP.
	for i := 0; i < 5; i++ {
		require.NoError(t, f.db.Create(&ratelimitmodel.RateLimitRecord{
			Identifier:     "+15551112222",
			IdentifierType: "phone",
		}).Error)
	}

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")

	resp := f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	assert.False(t, resp.Success)
	assert.True(t, resp.RateLimited)
	assert.Greater(t, resp.RetryAfter, 0)
	assert.Equal(t, sessionmodel.StatusAwaitingDOBEmail, f.status(t, sessionID))
	assert.Equal(t, 0, f.sender.sendCount)
}

func TestDeliveryFailureHoldsStateAndCleansUp(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")

	f.sender.fail = true
	resp := f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	assert.False(t, resp.Success)
	assert.Equal(t, "DELIVERY_FAILED", resp.ErrorCode)
	assert.Equal(t, sessionmodel.StatusAwaitingDOBEmail, f.status(t, sessionID))

	// No undeliverable code is left pending.
	var pendingCount int64
	require.NoError(t, f.db.Model(&otpmodel.OTPRequest{}).
		Where("session_id = ? AND status = ?", sessionID, otpmodel.StatusPending).
		Count(&pendingCount).Error)
	assert.Equal(t, int64(0), pendingCount)

	// The next attempt succeeds once the provider is back.
	f.sender.fail = false
	resp = f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")
	assert.True(t, resp.Success)
	assert.Equal(t, sessionmodel.StatusAwaitingOTP, f.status(t, sessionID))
}

func TestPauseAndContinue(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")

	resp := f.orc.Process(context.Background(), sessionID, "what are your hours?")
	assert.True(t, resp.Paused)
	assert.Contains(t, resp.Output, "8:00 AM")
	assert.Contains(t, resp.Output, "continue")
	assert.Equal(t, sessionmodel.StatusAuthPaused, f.status(t, sessionID))

	// Another question keeps the wizard parked.
	resp = f.orc.Process(context.Background(), sessionID, "where are you located?")
	assert.True(t, resp.Paused)
	assert.Equal(t, sessionmodel.StatusAuthPaused, f.status(t, sessionID))

	resp = f.orc.Process(context.Background(), sessionID, "continue")
	assert.True(t, resp.Resumed)
	assert.Equal(t, sessionmodel.StatusAwaitingAuthDetails, f.status(t, sessionID))

	// The wizard picks up where it left off.
	resp = f.orc.Process(context.Background(), sessionID, "Jane Doe")
	assert.Equal(t, sessionmodel.StatusAwaitingDOBEmail, f.status(t, sessionID))
}

func TestRestartFromPaused(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")
	f.orc.Process(context.Background(), sessionID, "do you take my insurance")
	require.Equal(t, sessionmodel.StatusAuthPaused, f.status(t, sessionID))

	resp := f.orc.Process(context.Background(), sessionID, "restart")
	assert.True(t, resp.Restarted)
	assert.Equal(t, sessionmodel.StatusAwaitingAuthDetails, f.status(t, sessionID))
}

func TestInvalidFormatOTPInputDoesNotBurnAttempt(t *testing.T) {
	f := newFixture(t)
	sessionID := f.newSession(t)

	f.orc.Process(context.Background(), sessionID, "book an appointment")
	f.orc.Process(context.Background(), sessionID, "Jane Doe")
	f.orc.Process(context.Background(), sessionID, "03/12/1985 (555) 111-2222")

	resp := f.orc.Process(context.Background(), sessionID, "i typed something weird")
	assert.True(t, resp.ValidationError)
	assert.Equal(t, sessionmodel.StatusAwaitingOTP, f.status(t, sessionID))

	// The code with separators still verifies after normalization.
	code := f.sender.lastCode
	spaced := code[:3] + " " + code[3:]
	resp = f.orc.Process(context.Background(), sessionID, spaced)
	assert.True(t, resp.Authenticated)
}

func TestUnknownSessionRejected(t *testing.T) {
	f := newFixture(t)

	resp := f.orc.Process(context.Background(), "guest_nonexistent", "hello")
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_SESSION", resp.ErrorCode)
}
