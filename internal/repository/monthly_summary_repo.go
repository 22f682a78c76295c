package repository

import (
	"errors"

	"attendance-agent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MonthlySummaryRepository interface {
	Upsert(summary *models.MonthlySummary) error
	GetByUserAndMonth(userID string, year, month int) (*models.MonthlySummary, error)
	GetByUserID(userID string, limit int) ([]*models.MonthlySummary, error)
}

type GormMonthlySummaryRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormMonthlySummaryRepository(db *gorm.DB) (*GormMonthlySummaryRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.MonthlySummary{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate monthly_summaries table")
		return nil, err
	}

	logger.Info("Monthly summary repository initialized")

	return &GormMonthlySummaryRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Upsert replaces a user's rollup for one month. Rebuilds are cheap, so the
// whole row is written each time rather than patched.
func (r *GormMonthlySummaryRepository) Upsert(summary *models.MonthlySummary) error {
	if !summary.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"user_id": summary.UserID,
			"year":    summary.Year,
			"month":   summary.Month,
		}).Warn("Invalid monthly summary data")
		return errors.New("invalid monthly summary data")
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "year"}, {Name: "month"}},
		UpdateAll: true,
	}).Create(summary)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to upsert monthly summary")
		return result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":      summary.UserID,
		"year":         summary.Year,
		"month":        summary.Month,
		"present_days": summary.PresentDays,
	}).Info("Monthly summary saved")

	return nil
}

func (r *GormMonthlySummaryRepository) GetByUserAndMonth(userID string, year, month int) (*models.MonthlySummary, error) {
	var summary models.MonthlySummary
	result := r.db.Where("user_id = ? AND year = ? AND month = ?", userID, year, month).First(&summary)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"year":    year,
			"month":   month,
		}).Debug("Monthly summary not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get monthly summary")
		return nil, result.Error
	}

	return &summary, nil
}

func (r *GormMonthlySummaryRepository) GetByUserID(userID string, limit int) ([]*models.MonthlySummary, error) {
	var summaries []*models.MonthlySummary

	query := r.db.Where("user_id = ?", userID).Order("year DESC, month DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Find(&summaries)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get monthly summaries")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(summaries),
	}).Debug("Retrieved monthly summaries")

	return summaries, nil
}
