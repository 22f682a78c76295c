package repository

import (
	"errors"

	"attendance-agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NonWorkingDayRepository interface {
	UpsertAll(days []models.NonWorkingDay) error
	GetByDate(date string) (*models.NonWorkingDay, error)
	GetByYearMonth(year, month int) ([]models.NonWorkingDay, error)
	GetAll() ([]models.NonWorkingDay, error)
	ReplaceYear(year int, days []models.NonWorkingDay) error
}

type GormNonWorkingDayRepository struct {
	db *gorm.DB
}

func NewGormNonWorkingDayRepository(db *gorm.DB) (NonWorkingDayRepository, error) {
	if err := db.AutoMigrate(&models.NonWorkingDay{}); err != nil {
		return nil, err
	}

	return &GormNonWorkingDayRepository{db: db}, nil
}

// UpsertAll loads calendar days idempotently, replacing any existing row for
// the same date.
func (r *GormNonWorkingDayRepository) UpsertAll(days []models.NonWorkingDay) error {
	if len(days) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		UpdateAll: true,
	}).Create(&days).Error
}

func (r *GormNonWorkingDayRepository) GetByDate(date string) (*models.NonWorkingDay, error) {
	var day models.NonWorkingDay
	err := r.db.Where("date = ?", date).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *GormNonWorkingDayRepository) GetByYearMonth(year, month int) ([]models.NonWorkingDay, error) {
	var days []models.NonWorkingDay
	err := r.db.Where("year = ? AND month = ?", year, month).Order("date ASC").Find(&days).Error
	return days, err
}

func (r *GormNonWorkingDayRepository) GetAll() ([]models.NonWorkingDay, error) {
	var days []models.NonWorkingDay
	err := r.db.Order("date ASC").Find(&days).Error
	return days, err
}

// ReplaceYear swaps out a whole year's calendar in one transaction, used
// when the holiday file is reloaded.
func (r *GormNonWorkingDayRepository) ReplaceYear(year int, days []models.NonWorkingDay) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("year = ?", year).Delete(&models.NonWorkingDay{}).Error; err != nil {
			return err
		}
		if len(days) == 0 {
			return nil
		}
		return tx.Create(&days).Error
	})
}
