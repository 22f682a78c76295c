package models

import (
	"fmt"
	"time"
)

// Queue entity types
const (
	QueueTypeProfile    = "profile"
	QueueTypeAttendance = "attendance"
	QueueTypeSettings   = "settings"
)

// Queue operations
const (
	QueueOpCreate = "create"
	QueueOpUpdate = "update"
	QueueOpDelete = "delete"
)

// SyncQueueItem is one pending mutation awaiting push to the server. The ID
// is deterministic over (type, entityId, property) so re-enqueuing the same
// logical mutation before it drains replaces the row instead of duplicating
// it; Timestamp records the entity's logical timestamp (the punch millis for
// attendance, the local edit time otherwise).
type SyncQueueItem struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Type        string    `gorm:"type:varchar(16);not null;index" json:"type"`
	EntityID    string    `gorm:"not null" json:"entity_id"`
	Property    string    `json:"property"`
	Operation   string    `gorm:"type:varchar(16);not null" json:"operation"`
	Data        string    `json:"data"`
	Timestamp   int64     `gorm:"not null" json:"timestamp"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	NextRetryAt int64     `gorm:"not null;index" json:"next_retry_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SyncQueueItem) TableName() string {
	return "sync_queue"
}

// QueueItemID derives the deterministic queue id for a logical mutation.
func QueueItemID(itemType, entityID, property string) string {
	return fmt.Sprintf("%s:%s:%s", itemType, entityID, property)
}

// IsValid checks the queue item data
func (q *SyncQueueItem) IsValid() bool {
	if q.Type != QueueTypeProfile && q.Type != QueueTypeAttendance && q.Type != QueueTypeSettings {
		return false
	}
	if q.EntityID == "" {
		return false
	}
	if q.Operation != QueueOpCreate && q.Operation != QueueOpUpdate && q.Operation != QueueOpDelete {
		return false
	}
	return true
}
