package service

import (
	"context"
	"fmt"
	"time"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/backoff"
	"attendance-agent/pkg/timeutil"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultPullWindowDays bounds how far back a sync cycle pulls server data.
const DefaultPullWindowDays = 30

// ConnectivityChecker re-probes reachability before the pull phase.
type ConnectivityChecker interface {
	CheckNow(ctx context.Context) bool
}

// DomainResult counts how one domain's push sweep went.
type DomainResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// SyncResult is the outcome of one full sync cycle.
type SyncResult struct {
	Success    bool         `json:"success"`
	Profile    DomainResult `json:"profile"`
	Attendance DomainResult `json:"attendance"`
	Settings   DomainResult `json:"settings"`
	Errors     []string     `json:"errors"`
}

// Coordinator runs full sync cycles and drains the retry queue. Domains are
// isolated: one domain failing never stops the others from syncing.
type Coordinator struct {
	profiles       *ProfileSyncService
	attendance     *AttendanceSyncService
	settings       *SettingsSyncService
	queueRepo      repository.SyncQueueRepository
	monitor        ConnectivityChecker
	pullWindowDays int
	logger         *logrus.Logger
}

func NewCoordinator(
	profiles *ProfileSyncService,
	attendance *AttendanceSyncService,
	settings *SettingsSyncService,
	queueRepo repository.SyncQueueRepository,
	monitor ConnectivityChecker,
	pullWindowDays int,
) *Coordinator {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if pullWindowDays <= 0 {
		pullWindowDays = DefaultPullWindowDays
	}

	return &Coordinator{
		profiles:       profiles,
		attendance:     attendance,
		settings:       settings,
		queueRepo:      queueRepo,
		monitor:        monitor,
		pullWindowDays: pullWindowDays,
		logger:         logger,
	}
}

// SyncAll runs one full cycle for the owner identity: push every domain's
// unsynced data, then, if the server is reachable, pull and merge the
// server's view. Push failures mark the cycle unsuccessful but never abort
// the remaining domains.
func (c *Coordinator) SyncAll(ctx context.Context, email, userID string) SyncResult {
	cycleID := uuid.New().String()
	log := c.logger.WithField("cycle_id", cycleID)

	log.WithFields(logrus.Fields{
		"email":   email,
		"user_id": userID,
	}).Info("Sync cycle started")

	var result SyncResult

	pushed, failed, err := c.profiles.PushAllUnsynced(ctx)
	result.Profile = DomainResult{Success: pushed, Failed: failed}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("profile push: %v", err))
	} else if failed > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("profile push: %d failed", failed))
	}

	pushed, failed, err = c.attendance.PushAllUnsynced(ctx, userID)
	result.Attendance = DomainResult{Success: pushed, Failed: failed}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("attendance push: %v", err))
	} else if failed > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("attendance push: %d failed", failed))
	}

	pushed, failed, err = c.settings.PushAllUnsynced(ctx)
	result.Settings = DomainResult{Success: pushed, Failed: failed}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("settings push: %v", err))
	} else if failed > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("settings push: %d failed", failed))
	}

	if c.monitor == nil || c.monitor.CheckNow(ctx) {
		c.pullPhase(ctx, log, email, userID)
	} else {
		log.Info("Server unreachable, skipping pull phase")
	}

	result.Success = len(result.Errors) == 0

	log.WithFields(logrus.Fields{
		"success":          result.Success,
		"profile_pushed":   result.Profile.Success,
		"attendance_push":  result.Attendance.Success,
		"attendance_fail":  result.Attendance.Failed,
		"settings_settled": result.Settings.Success,
		"errors":           len(result.Errors),
	}).Info("Sync cycle finished")

	return result
}

// Pull failures are logged, never accumulated into the cycle result: stale
// local data is an acceptable degraded state.
func (c *Coordinator) pullPhase(ctx context.Context, log *logrus.Entry, email, userID string) {
	now := time.Now().UTC()
	endKey := now.Format(timeutil.DateKeyLayout)
	startKey := now.AddDate(0, 0, -c.pullWindowDays).Format(timeutil.DateKeyLayout)

	added, confirmed, err := c.attendance.PullFromServer(ctx, userID, startKey, endKey)
	if err != nil {
		log.WithError(err).Warn("Attendance pull failed")
	} else {
		log.WithFields(logrus.Fields{
			"added":     added,
			"confirmed": confirmed,
		}).Info("Attendance pull merged")
	}

	if _, err := c.profiles.PullFromServer(ctx, email); err != nil {
		log.WithError(err).Warn("Profile pull failed")
	}

	if _, err := c.settings.PullFromServer(ctx); err != nil {
		log.WithError(err).Warn("Settings pull failed")
	}
}

// ProcessSyncQueue drains every queue item whose retry time has arrived.
// Finished items leave the queue; failed ones are rescheduled with
// exponential backoff until their attempts run out, then discarded.
func (c *Coordinator) ProcessSyncQueue(ctx context.Context) (processed, failed int, err error) {
	now := time.Now().UTC()

	items, err := c.queueRepo.DrainablePending(timeutil.ToMillis(now))
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	c.logger.WithField("count", len(items)).Info("Draining sync queue")

	for _, item := range items {
		if !backoff.ShouldRetry(item.Attempts, backoff.DefaultMaxAttempts) {
			c.logger.WithFields(logrus.Fields{
				"id":       item.ID,
				"attempts": item.Attempts,
			}).Warn("Discarding queue item with exhausted retries")
			if derr := c.queueRepo.Discard(item.ID); derr != nil {
				c.logger.WithError(derr).Error("Failed to discard queue item")
			}
			failed++
			continue
		}

		done, pushErr := c.dispatch(ctx, item)
		if done {
			if merr := c.queueRepo.MarkSynced(item.ID); merr != nil {
				c.logger.WithError(merr).Error("Failed to remove finished queue item")
			}
			processed++
			continue
		}

		failed++
		attempts := item.Attempts + 1
		if !backoff.ShouldRetry(attempts, backoff.DefaultMaxAttempts) {
			c.logger.WithError(pushErr).WithFields(logrus.Fields{
				"id":       item.ID,
				"attempts": attempts,
			}).Warn("Queue item failed its last attempt, discarding")
			if derr := c.queueRepo.Discard(item.ID); derr != nil {
				c.logger.WithError(derr).Error("Failed to discard queue item")
			}
			continue
		}

		nextRetryAt := timeutil.ToMillis(backoff.NextRetryAt(now, item.Attempts))
		if ierr := c.queueRepo.IncrementAttempts(item.ID, nextRetryAt); ierr != nil {
			c.logger.WithError(ierr).Error("Failed to reschedule queue item")
			continue
		}

		c.logger.WithError(pushErr).WithFields(logrus.Fields{
			"id":            item.ID,
			"attempts":      attempts,
			"next_retry_at": nextRetryAt,
		}).Info("Queue item rescheduled after failed push")
	}

	c.logger.WithFields(logrus.Fields{
		"processed": processed,
		"failed":    failed,
	}).Info("Sync queue drained")

	return processed, failed, nil
}

func (c *Coordinator) dispatch(ctx context.Context, item *models.SyncQueueItem) (bool, error) {
	switch item.Type {
	case models.QueueTypeProfile:
		return c.profiles.PushQueued(ctx, item)
	case models.QueueTypeAttendance:
		return c.attendance.PushQueued(ctx, item)
	case models.QueueTypeSettings:
		return c.settings.PushQueued(ctx, item)
	default:
		c.logger.WithFields(logrus.Fields{
			"id":   item.ID,
			"type": item.Type,
		}).Warn("Dropping queue item of unknown type")
		return true, nil
	}
}
