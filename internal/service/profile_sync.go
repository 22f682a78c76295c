package service

import (
	"context"
	"encoding/json"
	"fmt"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/apiclient"
	"attendance-agent/pkg/timeutil"

	"github.com/sirupsen/logrus"
)

// ProfileAPI is the slice of the server client the profile sync needs.
type ProfileAPI interface {
	Profile(ctx context.Context, email string) (*apiclient.ProfileResponse, error)
	UpdateProfile(ctx context.Context, req apiclient.ProfileUpdateRequest) (*apiclient.ProfileResponse, error)
}

type ProfileSyncService struct {
	profileRepo repository.ProfileRepository
	queueRepo   repository.SyncQueueRepository
	api         ProfileAPI
	logger      *logrus.Logger
}

func NewProfileSyncService(
	profileRepo repository.ProfileRepository,
	queueRepo repository.SyncQueueRepository,
	api ProfileAPI,
) *ProfileSyncService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &ProfileSyncService{
		profileRepo: profileRepo,
		queueRepo:   queueRepo,
		api:         api,
		logger:      logger,
	}
}

// GetProfile returns the locally stored profile, nil when none exists yet.
func (s *ProfileSyncService) GetProfile(email string) (*models.Profile, error) {
	return s.profileRepo.GetByEmail(email)
}

// UpdateProperty applies a local profile edit and queues it for push. A
// second edit to the same property before the first drains replaces the
// queued item.
func (s *ProfileSyncService) UpdateProperty(email, property, value string) (*models.Profile, error) {
	now := timeutil.NowMillis()

	profile, err := s.profileRepo.UpdateProperty(email, property, value, now)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		data = []byte("{}")
	}

	item := &models.SyncQueueItem{
		Type:      models.QueueTypeProfile,
		EntityID:  email,
		Property:  property,
		Operation: models.QueueOpUpdate,
		Data:      string(data),
		Timestamp: now,
	}
	if err := s.queueRepo.Enqueue(item); err != nil {
		// The edit is durable either way; a full push sweep will pick it up.
		s.logger.WithError(err).Error("Failed to enqueue profile edit for sync")
	}

	return profile, nil
}

// GetUnsynced returns profiles with local edits awaiting push.
func (s *ProfileSyncService) GetUnsynced() ([]*models.Profile, error) {
	return s.profileRepo.GetUnsynced()
}

// PushOne sends the profile's current state to the server. The whole row
// goes up, so every queued per-property edit for it is covered by one call.
func (s *ProfileSyncService) PushOne(ctx context.Context, profile *models.Profile) (bool, error) {
	req := apiclient.ProfileUpdateRequest{
		Email:          profile.Email,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		ProfilePhoto:   profile.ProfilePhoto,
		DateOfBirth:    profile.DateOfBirth,
		EmploymentType: profile.EmploymentType,
		Designation:    profile.Designation,
		ShiftStartTime: profile.ShiftStartTime,
		ShiftEndTime:   profile.ShiftEndTime,
	}

	resp, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		s.logger.WithError(err).WithField("email", profile.Email).Warn("Profile push failed")
		return false, err
	}

	serverSyncedAt := timeutil.NowMillis()
	if parsed, perr := timeutil.ParseFlexibleMillis(resp.LastSyncedAt); perr == nil {
		serverSyncedAt = parsed
	} else {
		s.logger.WithError(perr).Warn("Cannot parse server profile sync time, using local clock")
	}

	if err := s.profileRepo.MarkSynced(profile.Email, serverSyncedAt); err != nil {
		return false, err
	}

	if err := s.queueRepo.ClearEntity(models.QueueTypeProfile, profile.Email); err != nil {
		s.logger.WithError(err).Warn("Failed to clear queue entries for pushed profile")
	}

	s.logger.WithFields(logrus.Fields{
		"email":            profile.Email,
		"server_synced_at": serverSyncedAt,
	}).Info("Profile pushed to server")

	return true, nil
}

// PushAllUnsynced pushes every profile with pending local edits.
func (s *ProfileSyncService) PushAllUnsynced(ctx context.Context) (pushed, failed int, err error) {
	profiles, err := s.profileRepo.GetUnsynced()
	if err != nil {
		return 0, 0, err
	}

	for _, profile := range profiles {
		ok, pushErr := s.PushOne(ctx, profile)
		if ok {
			pushed++
			continue
		}
		failed++
		s.logger.WithError(pushErr).WithField("email", profile.Email).Warn("Profile left unsynced")
	}

	return pushed, failed, nil
}

// PullFromServer fetches the server profile and merges it under the
// two-clock rule.
func (s *ProfileSyncService) PullFromServer(ctx context.Context, email string) (bool, error) {
	resp, err := s.api.Profile(ctx, email)
	if err != nil {
		s.logger.WithError(err).WithField("email", email).Warn("Profile pull failed")
		return false, err
	}

	return s.MergeServerProfile(resp)
}

// MergeServerProfile reconciles the server's profile with the local row.
// Server data wins when the server's sync clock is at or past the local edit
// clock; a strictly newer local edit survives and stays queued for push.
func (s *ProfileSyncService) MergeServerProfile(resp *apiclient.ProfileResponse) (bool, error) {
	if resp == nil || resp.Email == "" {
		return false, fmt.Errorf("server profile payload has no email")
	}

	serverSyncedAt := int64(0)
	if parsed, err := timeutil.ParseFlexibleMillis(resp.LastSyncedAt); err == nil {
		serverSyncedAt = parsed
	} else {
		s.logger.WithError(err).Warn("Server profile has no usable sync time")
	}

	local, err := s.profileRepo.GetByEmail(resp.Email)
	if err != nil {
		return false, err
	}

	if local == nil {
		profile := &models.Profile{Email: resp.Email}
		applyServerProfile(profile, resp)
		profile.ServerLastSyncedAt = serverSyncedAt
		profile.IsSynced = true

		if err := s.profileRepo.Save(profile); err != nil {
			return false, err
		}

		s.logger.WithField("email", resp.Email).Info("Profile created from server")
		return true, nil
	}

	if !local.IsSynced && serverSyncedAt < local.LastUpdatedAt {
		// The local edit is newer than anything the server has seen: keep it
		// and let the next push win.
		local.ServerLastSyncedAt = serverSyncedAt
		if err := s.profileRepo.Save(local); err != nil {
			return false, err
		}

		s.logger.WithFields(logrus.Fields{
			"email":            resp.Email,
			"local_updated_at": local.LastUpdatedAt,
			"server_synced_at": serverSyncedAt,
		}).Info("Keeping newer local profile edit over server copy")
		return false, nil
	}

	applyServerProfile(local, resp)
	local.ServerLastSyncedAt = serverSyncedAt
	local.IsSynced = true

	if err := s.profileRepo.Save(local); err != nil {
		return false, err
	}

	if err := s.queueRepo.ClearEntity(models.QueueTypeProfile, resp.Email); err != nil {
		s.logger.WithError(err).Warn("Failed to clear queue entries after server profile won merge")
	}

	s.logger.WithFields(logrus.Fields{
		"email":            resp.Email,
		"server_synced_at": serverSyncedAt,
	}).Info("Server profile merged")

	return true, nil
}

// PushQueued drains one profile queue item by pushing the profile's current
// state. Reports whether the item is finished and can leave the queue.
func (s *ProfileSyncService) PushQueued(ctx context.Context, item *models.SyncQueueItem) (bool, error) {
	profile, err := s.profileRepo.GetByEmail(item.EntityID)
	if err != nil {
		return false, err
	}
	if profile == nil {
		s.logger.WithField("email", item.EntityID).Warn("Dropping queue item for missing profile")
		return true, nil
	}
	if profile.IsSynced {
		// A full sweep or a winning server merge already settled this edit.
		return true, nil
	}

	return s.PushOne(ctx, profile)
}

func applyServerProfile(profile *models.Profile, resp *apiclient.ProfileResponse) {
	if resp.UserID != "" {
		profile.UserID = resp.UserID
	}
	profile.FirstName = resp.FirstName
	profile.LastName = resp.LastName
	profile.ProfilePhoto = resp.ProfilePhoto
	profile.DateOfBirth = resp.DateOfBirth
	profile.EmploymentType = resp.EmploymentType
	profile.Designation = resp.Designation
	profile.ShiftStartTime = resp.ShiftStartTime
	profile.ShiftEndTime = resp.ShiftEndTime
}
