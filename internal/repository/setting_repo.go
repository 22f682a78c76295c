package repository

import (
	"errors"

	"attendance-agent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SettingRepository interface {
	Get(key string) (*models.Setting, error)
	GetAll() ([]*models.Setting, error)
	Set(key, value string, updatedAt int64) (*models.Setting, error)
	GetUnsynced() ([]*models.Setting, error)
	MarkSynced(key string, serverUpdatedAt int64) error
}

type GormSettingRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormSettingRepository(db *gorm.DB) (*GormSettingRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate settings table")
		return nil, err
	}

	logger.Info("Setting repository initialized")

	return &GormSettingRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormSettingRepository) Get(key string) (*models.Setting, error) {
	var setting models.Setting
	result := r.db.Where("key = ?", key).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("key", key).Debug("Setting not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get setting")
		return nil, result.Error
	}

	return &setting, nil
}

func (r *GormSettingRepository) GetAll() ([]*models.Setting, error) {
	var settings []*models.Setting

	result := r.db.Order("key ASC").Find(&settings)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get settings")
		return nil, result.Error
	}

	return settings, nil
}

// Set upserts one setting and flips it to unsynced so the next sync cycle
// pushes it.
func (r *GormSettingRepository) Set(key, value string, updatedAt int64) (*models.Setting, error) {
	if key == "" {
		r.logger.Warn("Rejecting setting with empty key")
		return nil, errors.New("setting key must not be empty")
	}

	setting, err := r.Get(key)
	if err != nil {
		return nil, err
	}

	created := false
	if setting == nil {
		setting = &models.Setting{Key: key}
		created = true
	}

	setting.Value = value
	setting.LastUpdatedAt = updatedAt
	setting.IsSynced = false

	var result *gorm.DB
	if created {
		result = r.db.Create(setting)
	} else {
		result = r.db.Save(setting)
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to save setting")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"key":     key,
		"created": created,
	}).Info("Setting saved")

	return setting, nil
}

func (r *GormSettingRepository) GetUnsynced() ([]*models.Setting, error) {
	var settings []*models.Setting

	result := r.db.Where("is_synced = ?", false).Order("key ASC").Find(&settings)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get unsynced settings")
		return nil, result.Error
	}

	r.logger.WithField("count", len(settings)).Debug("Retrieved unsynced settings")

	return settings, nil
}

func (r *GormSettingRepository) MarkSynced(key string, serverUpdatedAt int64) error {
	result := r.db.Model(&models.Setting{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"is_synced":              true,
			"server_last_updated_at": serverUpdatedAt,
		})

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to mark setting synced")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("key", key).Warn("Setting not found for sync confirmation")
		return errors.New("setting not found")
	}

	r.logger.WithField("key", key).Info("Setting marked synced")

	return nil
}
