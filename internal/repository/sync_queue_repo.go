package repository

import (
	"errors"

	"attendance-agent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncQueueRepository interface {
	Enqueue(item *models.SyncQueueItem) error
	GetAll() ([]*models.SyncQueueItem, error)
	DrainablePending(now int64) ([]*models.SyncQueueItem, error)
	PendingCount() (int64, error)
	MarkSynced(id string) error
	Discard(id string) error
	ClearEntity(itemType, entityID string) error
	IncrementAttempts(id string, nextRetryAt int64) error
}

type GormSyncQueueRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormSyncQueueRepository(db *gorm.DB) (*GormSyncQueueRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.SyncQueueItem{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate sync_queue table")
		return nil, err
	}

	logger.Info("Sync queue repository initialized")

	return &GormSyncQueueRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Enqueue inserts a queue item under its deterministic ID. Re-enqueueing the
// same (type, entity, property) replaces the pending item wholesale, so a
// newer edit supersedes an older one instead of queueing behind it. Fresh
// items are eligible for draining immediately.
func (r *GormSyncQueueRepository) Enqueue(item *models.SyncQueueItem) error {
	if item.ID == "" {
		item.ID = models.QueueItemID(item.Type, item.EntityID, item.Property)
	}

	if !item.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"id":   item.ID,
			"type": item.Type,
		}).Warn("Invalid sync queue item")
		return errors.New("invalid sync queue item")
	}

	item.Attempts = 0
	if item.NextRetryAt == 0 {
		item.NextRetryAt = item.Timestamp
	}

	result := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(item)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to enqueue sync item")
		return result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"id":        item.ID,
		"type":      item.Type,
		"entity_id": item.EntityID,
		"operation": item.Operation,
	}).Info("Sync item enqueued")

	return nil
}

func (r *GormSyncQueueRepository) GetAll() ([]*models.SyncQueueItem, error) {
	var items []*models.SyncQueueItem

	result := r.db.Order("timestamp ASC").Find(&items)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get sync queue items")
		return nil, result.Error
	}

	return items, nil
}

// DrainablePending returns items whose retry time has arrived, oldest first.
// Items still inside their backoff window stay untouched.
func (r *GormSyncQueueRepository) DrainablePending(now int64) ([]*models.SyncQueueItem, error) {
	var items []*models.SyncQueueItem

	result := r.db.Where("next_retry_at <= ?", now).Order("timestamp ASC").Find(&items)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get drainable sync items")
		return nil, result.Error
	}

	r.logger.WithField("count", len(items)).Debug("Retrieved drainable sync items")

	return items, nil
}

func (r *GormSyncQueueRepository) PendingCount() (int64, error) {
	var count int64

	result := r.db.Model(&models.SyncQueueItem{}).Count(&count)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to count sync queue items")
		return 0, result.Error
	}

	return count, nil
}

func (r *GormSyncQueueRepository) MarkSynced(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.SyncQueueItem{})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to remove synced queue item")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Debug("Queue item already removed")
		return nil
	}

	r.logger.WithField("id", id).Info("Sync item completed and removed from queue")

	return nil
}

// ClearEntity removes every pending item for one entity, used after a push
// that covered the whole entity rather than a single queued mutation.
func (r *GormSyncQueueRepository) ClearEntity(itemType, entityID string) error {
	result := r.db.Where("type = ? AND entity_id = ?", itemType, entityID).Delete(&models.SyncQueueItem{})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to clear queue items for entity")
		return result.Error
	}

	if result.RowsAffected > 0 {
		r.logger.WithFields(logrus.Fields{
			"type":      itemType,
			"entity_id": entityID,
			"removed":   result.RowsAffected,
		}).Debug("Cleared queue items covered by entity push")
	}

	return nil
}

// Discard drops an item whose retries are exhausted. The underlying entity
// keeps its unsynced flag, so a later full sync can still push it.
func (r *GormSyncQueueRepository) Discard(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.SyncQueueItem{})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to discard queue item")
		return result.Error
	}

	r.logger.WithField("id", id).Warn("Sync item discarded after exhausting retries")

	return nil
}

func (r *GormSyncQueueRepository) IncrementAttempts(id string, nextRetryAt int64) error {
	result := r.db.Model(&models.SyncQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":      gorm.Expr("attempts + 1"),
			"next_retry_at": nextRetryAt,
		})

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to increment queue item attempts")
		return result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Debug("Queue item vanished before attempt bump")
		return nil
	}

	r.logger.WithFields(logrus.Fields{
		"id":            id,
		"next_retry_at": nextRetryAt,
	}).Debug("Sync item rescheduled")

	return nil
}
