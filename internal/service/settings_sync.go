package service

import (
	"context"
	"encoding/json"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/timeutil"

	"github.com/sirupsen/logrus"
)

// SettingsSyncService gives app settings the same local-first write path as
// the other domains. The server currently exposes no settings endpoint, so
// pushes settle locally and pulls are a no-op; the queue plumbing stays in
// place for when the endpoint lands.
type SettingsSyncService struct {
	settingRepo repository.SettingRepository
	queueRepo   repository.SyncQueueRepository
	logger      *logrus.Logger
}

func NewSettingsSyncService(
	settingRepo repository.SettingRepository,
	queueRepo repository.SyncQueueRepository,
) *SettingsSyncService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &SettingsSyncService{
		settingRepo: settingRepo,
		queueRepo:   queueRepo,
		logger:      logger,
	}
}

// Get returns one setting, nil when unset.
func (s *SettingsSyncService) Get(key string) (*models.Setting, error) {
	return s.settingRepo.Get(key)
}

// All returns every stored setting.
func (s *SettingsSyncService) All() ([]*models.Setting, error) {
	return s.settingRepo.GetAll()
}

// Set stores a setting locally and queues it for push.
func (s *SettingsSyncService) Set(key, value string) (*models.Setting, error) {
	now := timeutil.NowMillis()

	setting, err := s.settingRepo.Set(key, value, now)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		data = []byte("{}")
	}

	item := &models.SyncQueueItem{
		Type:      models.QueueTypeSettings,
		EntityID:  key,
		Operation: models.QueueOpUpdate,
		Data:      string(data),
		Timestamp: now,
	}
	if err := s.queueRepo.Enqueue(item); err != nil {
		s.logger.WithError(err).Error("Failed to enqueue setting for sync")
	}

	return setting, nil
}

// GetUnsynced returns settings changed since their last sync.
func (s *SettingsSyncService) GetUnsynced() ([]*models.Setting, error) {
	return s.settingRepo.GetUnsynced()
}

// PushOne settles one setting. With no server settings endpoint the value is
// confirmed locally under its own edit clock.
func (s *SettingsSyncService) PushOne(_ context.Context, setting *models.Setting) (bool, error) {
	if err := s.settingRepo.MarkSynced(setting.Key, setting.LastUpdatedAt); err != nil {
		return false, err
	}

	if err := s.queueRepo.ClearEntity(models.QueueTypeSettings, setting.Key); err != nil {
		s.logger.WithError(err).Warn("Failed to clear queue entry for settled setting")
	}

	s.logger.WithField("key", setting.Key).Debug("Setting settled locally")

	return true, nil
}

// PushAllUnsynced settles every changed setting.
func (s *SettingsSyncService) PushAllUnsynced(ctx context.Context) (pushed, failed int, err error) {
	settings, err := s.settingRepo.GetUnsynced()
	if err != nil {
		return 0, 0, err
	}

	for _, setting := range settings {
		ok, pushErr := s.PushOne(ctx, setting)
		if ok {
			pushed++
			continue
		}
		failed++
		s.logger.WithError(pushErr).WithField("key", setting.Key).Warn("Setting left unsynced")
	}

	return pushed, failed, nil
}

// PullFromServer is a stub: the server has no settings read endpoint yet.
func (s *SettingsSyncService) PullFromServer(_ context.Context) (int, error) {
	s.logger.Debug("No server settings endpoint, skipping settings pull")
	return 0, nil
}

// PushQueued drains one settings queue item.
func (s *SettingsSyncService) PushQueued(ctx context.Context, item *models.SyncQueueItem) (bool, error) {
	setting, err := s.settingRepo.Get(item.EntityID)
	if err != nil {
		return false, err
	}
	if setting == nil {
		s.logger.WithField("key", item.EntityID).Warn("Dropping queue item for missing setting")
		return true, nil
	}
	if setting.IsSynced {
		return true, nil
	}

	return s.PushOne(ctx, setting)
}
