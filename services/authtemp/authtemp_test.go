package authtemp

import (
	"testing"
	"time"

	"thaliya-gateway/database"
	authtempmodel "thaliya-gateway/models/authtemp"

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

func TestBeginReplacesStaleRecord(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, 30*time.Minute)

	_, err := store.Begin("guest_a", "Old", "Name", "appointment", "old query")
	require.NoError(t, err)

	_, err = store.Begin("guest_a", "", "", "ticket", "new query")
	require.NoError(t, err)

	// One record per session, carrying the latest pass.
	var count int64
	require.NoError(t, db.Model(&authtempmodel.AuthTempRecord{}).Where("session_id = ?", "guest_a").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	record, err := store.Get("guest_a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "ticket", record.OriginalIntent)
	assert.Equal(t, "", record.FirstName)
}

func TestStepUpdatesAccumulate(t *testing.T) {
	store := NewStore(openTestDB(t), 30*time.Minute)

	_, err := store.Begin("guest_b", "", "", "appointment", "book me in")
	require.NoError(t, err)

	require.NoError(t, store.SetNames("guest_b", "Jane", "Doe"))

	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)
	require.NoError(t, store.SetContact("guest_b", dob, "jane@example.com", "+15551112222", "sms"))
	require.NoError(t, store.SetUserID("guest_b", 7))

	record, err := store.Get("guest_b")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Jane", record.FirstName)
	assert.Equal(t, "Doe", record.LastName)
	assert.Equal(t, "+15551112222", record.Phone)
	assert.Equal(t, "jane@example.com", record.Email)
	require.NotNil(t, record.UserID)
	assert.Equal(t, uint(7), *record.UserID)
	// The stashed intent survives every partial update.
	assert.Equal(t, "appointment", record.OriginalIntent)
}

func TestUpdateWithoutRecordFails(t *testing.T) {
	store := NewStore(openTestDB(t), 30*time.Minute)

	err := store.SetNames("guest_missing", "Jane", "Doe")
	assert.Error(t, err)
}

func TestPausedStateRoundTrip(t *testing.T) {
	store := NewStore(openTestDB(t), 30*time.Minute)

	_, err := store.Begin("guest_c", "Jane", "Doe", "", "")
	require.NoError(t, err)

	require.NoError(t, store.SetPausedState("guest_c", "awaiting_dob_email"))
	record, err := store.Get("guest_c")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_dob_email", record.AuthPausedState)

	require.NoError(t, store.ClearPausedState("guest_c"))
	record, err = store.Get("guest_c")
	require.NoError(t, err)
	assert.Equal(t, "", record.AuthPausedState)
}

func TestExpiredRecordReadsAsAbsent(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, 30*time.Minute)

	_, err := store.Begin("guest_d", "Jane", "Doe", "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&authtempmodel.AuthTempRecord{}).
		Where("session_id = ?", "guest_d").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	record, err := store.Get("guest_d")
	require.NoError(t, err)
	assert.Nil(t, record)

	// The lazy read also removed the row.
	var count int64
	require.NoError(t, db.Model(&authtempmodel.AuthTempRecord{}).Where("session_id = ?", "guest_d").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDeleteAndCleanup(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, 30*time.Minute)

	_, err := store.Begin("guest_e", "Jane", "Doe", "", "")
	require.NoError(t, err)
	require.NoError(t, store.Delete("guest_e"))

	record, err := store.Get("guest_e")
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = store.Begin("guest_f", "Stale", "Row", "", "")
	require.NoError(t, err)
	require.NoError(t, db.Model(&authtempmodel.AuthTempRecord{}).
		Where("session_id = ?", "guest_f").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	require.NoError(t, store.CleanupExpired())

	var count int64
	require.NoError(t, db.Model(&authtempmodel.AuthTempRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
