package user

import (
	"testing"
	"time"

	"thaliya-gateway/database"

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

func TestCreateNormalizesContacts(t *testing.T) {
	svc := NewService(openTestDB(t))
	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)

	created, err := svc.Create("Jane", "Doe", dob, "Jane@Example.COM", "(555) 111-2222")
	require.NoError(t, err)
	require.NotNil(t, created.Email)
	assert.Equal(t, "jane@example.com", *created.Email)
	require.NotNil(t, created.Phone)
	assert.Equal(t, "+15551112222", *created.Phone)
}

func TestFindByIdentityPhonePrimary(t *testing.T) {
	svc := NewService(openTestDB(t))
	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)

	created, err := svc.Create("Jane", "Doe", dob, "jane@example.com", "+15551112222")
	require.NoError(t, err)

	// Phone formatting variants normalize to the same identity.
	found, err := svc.FindByIdentity("Jane", "Doe", dob, "", "(555) 111-2222")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
}

func TestFindByIdentityEmailFallback(t *testing.T) {
	svc := NewService(openTestDB(t))
	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)

	created, err := svc.Create("Jane", "Doe", dob, "jane@example.com", "")
	require.NoError(t, err)

	found, err := svc.FindByIdentity("Jane", "Doe", dob, "JANE@example.com", "+15559990000")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
}

func TestFindByIdentityRequiresFullMatch(t *testing.T) {
	svc := NewService(openTestDB(t))
	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)

	_, err := svc.Create("Jane", "Doe", dob, "jane@example.com", "+15551112222")
	require.NoError(t, err)

	// Same contact, different name: not the same identity.
	found, err := svc.FindByIdentity("Janet", "Doe", dob, "jane@example.com", "+15551112222")
	require.NoError(t, err)
	assert.Nil(t, found)

	// Same name, different date of birth.
	otherDOB := time.Date(1990, 1, 15, 0, 0, 0, 0, time.Local)
	found, err = svc.FindByIdentity("Jane", "Doe", otherDOB, "jane@example.com", "+15551112222")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetByID(t *testing.T) {
	svc := NewService(openTestDB(t))
	dob := time.Date(1985, 3, 12, 0, 0, 0, 0, time.Local)

	created, err := svc.Create("Jane", "Doe", dob, "", "+15551112222")
	require.NoError(t, err)

	loaded, err := svc.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Jane", loaded.FirstName)

	missing, err := svc.GetByID(created.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
