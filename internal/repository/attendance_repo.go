package repository

import (
	"errors"

	"attendance-agent/internal/models"
	"attendance-agent/pkg/timeutil"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttendanceRepository interface {
	Insert(record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	GetByTimestamp(timestamp int64) (*models.AttendanceRecord, error)
	GetByUserID(userID string, limit int) ([]*models.AttendanceRecord, error)
	GetByUserAndRange(userID, startKey, endKey string) ([]*models.AttendanceRecord, error)
	GetLatestByUserID(userID string) (*models.AttendanceRecord, error)
	GetUnsynced(userID string) ([]*models.AttendanceRecord, error)
	MarkSynced(localTimestamp, serverTimestamp int64) error
}

type GormAttendanceRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormAttendanceRepository(db *gorm.DB) (*GormAttendanceRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.AttendanceRecord{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate attendance table")
		return nil, err
	}

	logger.Info("Attendance repository initialized")

	return &GormAttendanceRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Insert stores a punch record keyed by its timestamp. Inserting the same
// timestamp again is a no-op that returns the already stored row, so replays
// from the queue or the server never create duplicates. The second return
// value reports whether a new row was created.
func (r *GormAttendanceRepository) Insert(record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	if !record.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"timestamp": record.Timestamp,
			"user_id":   record.UserID,
		}).Warn("Invalid attendance record data")
		return nil, false, errors.New("invalid attendance record data")
	}

	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to insert attendance record")
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.GetByTimestamp(record.Timestamp)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, errors.New("attendance record conflicted but cannot be loaded")
		}

		r.logger.WithFields(logrus.Fields{
			"timestamp": record.Timestamp,
			"user_id":   record.UserID,
		}).Debug("Attendance record already exists, returning stored row")
		return existing, false, nil
	}

	r.logger.WithFields(logrus.Fields{
		"timestamp": record.Timestamp,
		"user_id":   record.UserID,
		"direction": record.PunchDirection,
		"date":      record.DateOfPunch,
	}).Info("Attendance record created")

	return record, true, nil
}

func (r *GormAttendanceRepository) GetByTimestamp(timestamp int64) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	result := r.db.Where("timestamp = ?", timestamp).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("timestamp", timestamp).Debug("Attendance record not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get attendance record by timestamp")
		return nil, result.Error
	}

	return &record, nil
}

func (r *GormAttendanceRepository) GetByUserID(userID string, limit int) ([]*models.AttendanceRecord, error) {
	var records []*models.AttendanceRecord

	query := r.db.Where("user_id = ?", userID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Find(&records)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get attendance records by user ID")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(records),
		"limit":   limit,
	}).Debug("Retrieved attendance records by user ID")

	return records, nil
}

// GetByUserAndRange returns records whose day key falls inside the inclusive
// [startKey, endKey] range, ordered by punch time. Records without a server
// day key fall back to the UTC day of their timestamp.
func (r *GormAttendanceRepository) GetByUserAndRange(userID, startKey, endKey string) ([]*models.AttendanceRecord, error) {
	startDay, err := timeutil.ParseDateKey(startKey)
	if err != nil {
		return nil, err
	}
	endDay, err := timeutil.ParseDateKey(endKey)
	if err != nil {
		return nil, err
	}

	startMillis := timeutil.ToMillis(startDay)
	endMillis := timeutil.ToMillis(endDay.AddDate(0, 0, 1))

	var records []*models.AttendanceRecord
	result := r.db.Where(
		"user_id = ? AND ((date_of_punch <> '' AND date_of_punch BETWEEN ? AND ?) OR (date_of_punch = '' AND timestamp >= ? AND timestamp < ?))",
		userID, startKey, endKey, startMillis, endMillis).
		Order("timestamp ASC").
		Find(&records)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get attendance records by range")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"start":   startKey,
		"end":     endKey,
		"count":   len(records),
	}).Debug("Retrieved attendance records by range")

	return records, nil
}

func (r *GormAttendanceRepository) GetLatestByUserID(userID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	result := r.db.Where("user_id = ?", userID).Order("timestamp DESC").First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("user_id", userID).Debug("No attendance records for user")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get latest attendance record")
		return nil, result.Error
	}

	return &record, nil
}

func (r *GormAttendanceRepository) GetUnsynced(userID string) ([]*models.AttendanceRecord, error) {
	var records []*models.AttendanceRecord

	result := r.db.Where("user_id = ? AND is_synced = ?", userID, models.SyncedNo).
		Order("timestamp ASC").
		Find(&records)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get unsynced attendance records")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(records),
	}).Debug("Retrieved unsynced attendance records")

	return records, nil
}

// MarkSynced confirms a pushed record. When the server assigned a different
// canonical timestamp the local row is re-keyed to it; if a row with the
// server timestamp already exists the local one is a duplicate of the same
// punch and is removed instead.
func (r *GormAttendanceRepository) MarkSynced(localTimestamp, serverTimestamp int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var record models.AttendanceRecord
		result := tx.Where("timestamp = ?", localTimestamp).First(&record)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			r.logger.WithField("timestamp", localTimestamp).Debug("Record to mark synced no longer exists")
			return nil
		}
		if result.Error != nil {
			r.logger.WithError(result.Error).Error("Failed to load record for sync confirmation")
			return result.Error
		}

		if serverTimestamp == 0 || serverTimestamp == localTimestamp {
			err := tx.Model(&models.AttendanceRecord{}).
				Where("timestamp = ?", localTimestamp).
				Update("is_synced", models.SyncedYes).Error
			if err != nil {
				r.logger.WithError(err).Error("Failed to mark attendance record synced")
				return err
			}

			r.logger.WithField("timestamp", localTimestamp).Info("Attendance record marked synced")
			return nil
		}

		var count int64
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("timestamp = ?", serverTimestamp).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			err := tx.Where("timestamp = ?", localTimestamp).Delete(&models.AttendanceRecord{}).Error
			if err != nil {
				r.logger.WithError(err).Error("Failed to drop superseded local record")
				return err
			}

			r.logger.WithFields(logrus.Fields{
				"local_timestamp":  localTimestamp,
				"server_timestamp": serverTimestamp,
			}).Info("Local record superseded by server copy")
			return nil
		}

		err := tx.Model(&models.AttendanceRecord{}).
			Where("timestamp = ?", localTimestamp).
			Updates(map[string]interface{}{
				"timestamp": serverTimestamp,
				"is_synced": models.SyncedYes,
			}).Error
		if err != nil {
			r.logger.WithError(err).Error("Failed to re-key attendance record to server timestamp")
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"local_timestamp":  localTimestamp,
			"server_timestamp": serverTimestamp,
		}).Info("Attendance record re-keyed to server timestamp and marked synced")
		return nil
	})
}
