package user

import (
	"fmt"
	"time"

	"thaliya-gateway/models/user"
	"thaliya-gateway/utils"

	"gorm.io/gorm"
)

// Service looks up and creates patient identities. Creation happens only
// after OTP verification succeeds; callers must not create rows for
// unverified guests.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// FindByIdentity matches an existing user on (first_name, last_name, dob)
// plus at least one contact point. Phone is the primary identifier; email
// matches as a fallback. Returns nil when no user matches.
func (s *Service) FindByIdentity(firstName, lastName string, dob time.Time, email, phone string) (*user.User, error) {
	query := s.DB.Where("first_name = ? AND last_name = ? AND dob = ?", firstName, lastName, dob)

	if phone != "" {
		normalized := utils.NormalizePhone(phone)
		var record user.User
		err := query.Session(&gorm.Session{}).Where("phone = ?", normalized).First(&record).Error
		if err == nil {
			return &record, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to look up user by phone: %w", err)
		}
	}

	if email != "" {
		var record user.User
		err := query.Session(&gorm.Session{}).Where("email = ?", utils.NormalizeIdentifier(email)).First(&record).Error
		if err == nil {
			return &record, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to look up user by email: %w", err)
		}
	}

	return nil, nil
}

// Create inserts a verified identity.
func (s *Service) Create(firstName, lastName string, dob time.Time, email, phone string) (*user.User, error) {
	record := &user.User{
		FirstName: firstName,
		LastName:  lastName,
		DOB:       dob,
	}
	if email != "" {
		normalized := utils.NormalizeIdentifier(email)
		record.Email = &normalized
	}
	if phone != "" {
		normalized := utils.NormalizePhone(phone)
		record.Phone = &normalized
	}

	if err := s.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return record, nil
}

// GetByID loads one user, nil if absent.
func (s *Service) GetByID(id uint) (*user.User, error) {
	var record user.User
	err := s.DB.First(&record, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &record, nil
}
