package database

import (
	"fmt"
	"os"

	"thaliya-gateway/logger"
	"thaliya-gateway/models/authtemp"
	"thaliya-gateway/models/chat"
	log_model "thaliya-gateway/models/log"
	"thaliya-gateway/models/otp"
	"thaliya-gateway/models/ratelimit"
	"thaliya-gateway/models/session"
	"thaliya-gateway/models/user"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection, migrates the schema and creates
// the supporting indexes.
func InitDB() (*gorm.DB, error) {
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	dbUser := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, dbUser, password, database, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := Migrate(db); err != nil {
		logger.Error("Failed to migrate database schema", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	if err := createIndexes(db); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return db, nil
}

// Migrate runs auto migration for all models in dependency order.
func Migrate(db *gorm.DB) error {
	// Stage 1: core identity tables
	stage1Models := []interface{}{
		&user.User{},
		&session.GuestSession{},
	}

	for _, model := range stage1Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: auth flow state tables referencing stage 1
	stage2Models := []interface{}{
		&authtemp.AuthTempRecord{},
		&otp.OTPRequest{},
		&otp.OTPEvent{},
		&ratelimit.RateLimitRecord{},
		&session.AuthenticatedUserSession{},
	}

	for _, model := range stage2Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: auditing
	remainingModels := []interface{}{
		&chat.ChatHistory{},
		&log_model.Log{},
	}

	for _, model := range remainingModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// createIndexes creates additional indexes for better performance.
func createIndexes(db *gorm.DB) error {
	// User lookup by the (name, dob, contact) tuple
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_users_identity ON users(first_name, last_name, dob)").Error; err != nil {
		return fmt.Errorf("failed to create user identity index: %w", err)
	}

	// OTP pending lookup per session
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_otp_requests_session_status ON otp_requests(session_id, status)").Error; err != nil {
		return fmt.Errorf("failed to create otp session/status index: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_otp_requests_created_at ON otp_requests(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create otp created_at index: %w", err)
	}

	// Rate limit window scans
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_otp_rate_limits_window ON otp_rate_limits(identifier, created_at)").Error; err != nil {
		return fmt.Errorf("failed to create rate limit window index: %w", err)
	}

	// Session expiry sweeps
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_guest_sessions_expires_at ON guest_sessions(expires_at)").Error; err != nil {
		return fmt.Errorf("failed to create session expires_at index: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_guest_auth_temp_expires_at ON guest_auth_temp(expires_at)").Error; err != nil {
		return fmt.Errorf("failed to create auth temp expires_at index: %w", err)
	}

	return nil
}
