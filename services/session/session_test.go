package session

import (
	"strings"
	"testing"
	"time"

	"thaliya-gateway/database"
	sessionmodel "thaliya-gateway/models/session"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestCreateAndValidate(t *testing.T) {
	m := NewManager(openTestDB(t), time.Hour)

	record, err := m.Create()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(record.SessionID, "guest_"))
	assert.Equal(t, sessionmodel.StatusActive, record.Status)

	ok, err := m.Validate(record.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Validate("guest_does_not_exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionTokensAreUnique(t *testing.T) {
	m := NewManager(openTestDB(t), time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		record, err := m.Create()
		require.NoError(t, err)
		assert.False(t, seen[record.SessionID])
		seen[record.SessionID] = true
	}
}

func TestExpiredSessionFailsValidation(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db, time.Hour)

	record, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, db.Model(&sessionmodel.GuestSession{}).
		Where("session_id = ?", record.SessionID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	ok, err := m.Validate(record.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTouchSlidesExpiry(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db, time.Hour)

	record, err := m.Create()
	require.NoError(t, err)

	// Pull expiry near, then touch; the TTL window should move forward.
	require.NoError(t, db.Model(&sessionmodel.GuestSession{}).
		Where("session_id = ?", record.SessionID).
		Update("expires_at", time.Now().Add(time.Minute)).Error)

	require.NoError(t, m.Touch(record.SessionID))

	refreshed, err := m.Get(record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.True(t, refreshed.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestUpdateStatus(t *testing.T) {
	m := NewManager(openTestDB(t), time.Hour)

	record, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, m.UpdateStatus(record.SessionID, sessionmodel.StatusAwaitingOTP))

	refreshed, err := m.Get(record.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionmodel.StatusAwaitingOTP, refreshed.Status)
}

func TestAuthenticatedLinkLifecycle(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db, time.Hour)

	record, err := m.Create()
	require.NoError(t, err)

	link, err := m.AuthenticatedLink(record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, link)

	created, err := m.CreateAuthenticatedLink(record.SessionID, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, created.LinkID)

	link, err = m.AuthenticatedLink(record.SessionID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, uint(42), link.UserID)

	// An expired link no longer authenticates the session.
	require.NoError(t, db.Model(&sessionmodel.AuthenticatedUserSession{}).
		Where("session_id = ?", record.SessionID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	link, err = m.AuthenticatedLink(record.SessionID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestChatHistoryOrderAndSensitivity(t *testing.T) {
	m := NewManager(openTestDB(t), time.Hour)

	record, err := m.Create()
	require.NoError(t, err)

	m.StoreChatHistory(record.SessionID, "what are your hours", "We're open 8 to 6.", sessionmodel.StatusActive, "rag_info", false)
	m.StoreChatHistory(record.SessionID, "[Name provided]", "Thanks John!", sessionmodel.StatusAwaitingDOBEmail, "auth_step1", true)

	entries, err := m.History(record.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "[Name provided]", entries[0].UserQuery)
	assert.True(t, entries[0].IsSensitive)
	assert.False(t, entries[1].IsSensitive)
}

func TestCleanupExpiredKeepsLiveSessions(t *testing.T) {
	db := openTestDB(t)
	m := NewManager(db, time.Hour)

	live, err := m.Create()
	require.NoError(t, err)
	dead, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, db.Model(&sessionmodel.GuestSession{}).
		Where("session_id = ?", dead.SessionID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	require.NoError(t, m.CleanupExpired())

	gone, err := m.Get(dead.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := m.Get(live.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestLockSerializesSameSession(t *testing.T) {
	m := NewManager(openTestDB(t), time.Hour)

	counter := 0
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			unlock := m.Lock("guest_same")
			counter++
			unlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, counter)
}
