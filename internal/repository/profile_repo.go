package repository

import (
	"errors"
	"fmt"

	"attendance-agent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	GetByEmail(email string) (*models.Profile, error)
	GetUnsynced() ([]*models.Profile, error)
	Save(profile *models.Profile) error
	UpdateProperty(email, property, value string, updatedAt int64) (*models.Profile, error)
	MarkSynced(email string, serverSyncedAt int64) error
}

type GormProfileRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormProfileRepository(db *gorm.DB) (*GormProfileRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.Profile{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate profiles table")
		return nil, err
	}

	logger.Info("Profile repository initialized")

	return &GormProfileRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormProfileRepository) GetByEmail(email string) (*models.Profile, error) {
	var profile models.Profile
	result := r.db.Where("email = ?", email).First(&profile)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("email", email).Debug("Profile not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get profile by email")
		return nil, result.Error
	}

	return &profile, nil
}

func (r *GormProfileRepository) GetUnsynced() ([]*models.Profile, error) {
	var profiles []*models.Profile

	result := r.db.Where("is_synced = ?", false).Find(&profiles)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get unsynced profiles")
		return nil, result.Error
	}

	r.logger.WithField("count", len(profiles)).Debug("Retrieved unsynced profiles")

	return profiles, nil
}

func (r *GormProfileRepository) Save(profile *models.Profile) error {
	if !profile.IsValid() {
		r.logger.WithField("email", profile.Email).Warn("Invalid profile data")
		return errors.New("invalid profile data")
	}

	existing, err := r.GetByEmail(profile.Email)
	if err != nil {
		return err
	}

	var result *gorm.DB
	if existing == nil {
		result = r.db.Create(profile)
	} else {
		result = r.db.Save(profile)
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to save profile")
		return result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"email":   profile.Email,
		"user_id": profile.UserID,
		"synced":  profile.IsSynced,
	}).Debug("Profile saved")

	return nil
}

// UpdateProperty applies one local edit. A missing profile row is created on
// the fly so edits made before the first pull are not lost. The edit stamps
// last_updated_at and flips the row back to unsynced.
func (r *GormProfileRepository) UpdateProperty(email, property, value string, updatedAt int64) (*models.Profile, error) {
	profile, err := r.GetByEmail(email)
	if err != nil {
		return nil, err
	}

	created := false
	if profile == nil {
		profile = &models.Profile{Email: email}
		created = true
	}

	if !profile.SetProperty(property, value) {
		r.logger.WithFields(logrus.Fields{
			"email":    email,
			"property": property,
		}).Warn("Unknown profile property")
		return nil, fmt.Errorf("unknown profile property: %s", property)
	}
	profile.LastUpdatedAt = updatedAt
	profile.IsSynced = false

	var result *gorm.DB
	if created {
		result = r.db.Create(profile)
	} else {
		result = r.db.Save(profile)
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update profile property")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"email":      email,
		"property":   property,
		"created":    created,
		"updated_at": updatedAt,
	}).Info("Profile property updated")

	return profile, nil
}

func (r *GormProfileRepository) MarkSynced(email string, serverSyncedAt int64) error {
	result := r.db.Model(&models.Profile{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"is_synced":             true,
			"server_last_synced_at": serverSyncedAt,
		})

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to mark profile synced")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("email", email).Warn("Profile not found for sync confirmation")
		return errors.New("profile not found")
	}

	r.logger.WithFields(logrus.Fields{
		"email":            email,
		"server_synced_at": serverSyncedAt,
	}).Info("Profile marked synced")

	return nil
}
