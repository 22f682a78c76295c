package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"

	"attendance-agent/internal/models"
	"attendance-agent/internal/repository"
	"attendance-agent/pkg/apiclient"
	"attendance-agent/pkg/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfileAPI struct {
	mu          sync.Mutex
	updates     []apiclient.ProfileUpdateRequest
	updateErr   error
	lastSynced  string
	profileResp *apiclient.ProfileResponse
	profileErr  error
}

func (f *fakeProfileAPI) Profile(_ context.Context, _ string) (*apiclient.ProfileResponse, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profileResp, nil
}

func (f *fakeProfileAPI) UpdateProfile(_ context.Context, req apiclient.ProfileUpdateRequest) (*apiclient.ProfileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return nil, f.updateErr
	}

	f.updates = append(f.updates, req)
	return &apiclient.ProfileResponse{Email: req.Email, LastSyncedAt: f.lastSynced}, nil
}

func newProfileSyncService(t *testing.T) (*ProfileSyncService, repository.ProfileRepository, repository.SyncQueueRepository, *fakeProfileAPI) {
	t.Helper()

	db := newServiceDB(t)
	profileRepo, err := repository.NewGormProfileRepository(db)
	require.NoError(t, err)
	queueRepo, err := repository.NewGormSyncQueueRepository(db)
	require.NoError(t, err)

	api := &fakeProfileAPI{}
	svc := NewProfileSyncService(profileRepo, queueRepo, api)
	svc.logger.SetOutput(io.Discard)

	return svc, profileRepo, queueRepo, api
}

func TestUpdatePropertyQueuesOneItemPerProperty(t *testing.T) {
	svc, _, queueRepo, _ := newProfileSyncService(t)

	_, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Amit")
	require.NoError(t, err)
	_, err = svc.UpdateProperty("amit@example.com", models.PropFirstName, "Amitabh")
	require.NoError(t, err)

	count, err := queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.UpdateProperty("amit@example.com", models.PropDesignation, "Engineer")
	require.NoError(t, err)

	count, err = queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	profile, err := svc.GetProfile("amit@example.com")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Amitabh", profile.FirstName)
	assert.False(t, profile.IsSynced)
}

func TestPushOneSendsWholeRowAndClearsQueue(t *testing.T) {
	svc, profileRepo, queueRepo, api := newProfileSyncService(t)

	serverSyncedAt := timeutil.NowMillis() + 2000
	api.lastSynced = strconv.FormatInt(serverSyncedAt, 10)

	_, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Amit")
	require.NoError(t, err)
	profile, err := svc.UpdateProperty("amit@example.com", models.PropDesignation, "Engineer")
	require.NoError(t, err)

	ok, err := svc.PushOne(context.Background(), profile)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, api.updates, 1)
	assert.Equal(t, "Amit", api.updates[0].FirstName)
	assert.Equal(t, "Engineer", api.updates[0].Designation)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsSynced)
	assert.Equal(t, serverSyncedAt, stored.ServerLastSyncedAt)

	count, err := queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestPushFailureKeepsEditPending(t *testing.T) {
	svc, profileRepo, queueRepo, api := newProfileSyncService(t)
	api.updateErr = context.DeadlineExceeded

	_, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Amit")
	require.NoError(t, err)

	pushed, failed, err := svc.PushAllUnsynced(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)
	assert.Equal(t, 1, failed)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	assert.False(t, stored.IsSynced)

	count, err := queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMergeCreatesProfileFromServer(t *testing.T) {
	svc, profileRepo, _, _ := newProfileSyncService(t)

	applied, err := svc.MergeServerProfile(&apiclient.ProfileResponse{
		Email:        "amit@example.com",
		UserID:       "user-1",
		FirstName:    "Amit",
		Designation:  "Engineer",
		LastSyncedAt: "2026-03-14T10:30:00Z",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "Amit", stored.FirstName)
	assert.True(t, stored.IsSynced)
	assert.Equal(t, int64(1773484200000), stored.ServerLastSyncedAt)
}

func TestMergeServerWinsTieOnEqualClocks(t *testing.T) {
	svc, profileRepo, queueRepo, _ := newProfileSyncService(t)

	profile, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Localname")
	require.NoError(t, err)

	// The server has seen the edit instant exactly: ties go to the server.
	applied, err := svc.MergeServerProfile(&apiclient.ProfileResponse{
		Email:        "amit@example.com",
		FirstName:    "Servername",
		LastSyncedAt: strconv.FormatInt(profile.LastUpdatedAt, 10),
	})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Servername", stored.FirstName)
	assert.True(t, stored.IsSynced)

	count, err := queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "a winning server merge settles the queued edit")
}

func TestMergeKeepsStrictlyNewerLocalEdit(t *testing.T) {
	svc, profileRepo, queueRepo, _ := newProfileSyncService(t)

	_, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Localname")
	require.NoError(t, err)

	// A server snapshot from long before the local edit.
	applied, err := svc.MergeServerProfile(&apiclient.ProfileResponse{
		Email:        "amit@example.com",
		FirstName:    "Servername",
		LastSyncedAt: "2020-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Localname", stored.FirstName)
	assert.False(t, stored.IsSynced)
	assert.Equal(t, int64(1577836800000), stored.ServerLastSyncedAt)

	count, err := queueRepo.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "losing merge must leave the edit queued")
}

func TestPullFromServerMergesUnderTwoClockRule(t *testing.T) {
	svc, profileRepo, _, api := newProfileSyncService(t)

	api.profileResp = &apiclient.ProfileResponse{
		Email:        "amit@example.com",
		FirstName:    "Amit",
		LastSyncedAt: "2026-03-14T10:30:00Z",
	}

	applied, err := svc.PullFromServer(context.Background(), "amit@example.com")
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := profileRepo.GetByEmail("amit@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Amit", stored.FirstName)
}

func TestPushQueuedSkipsSettledProfile(t *testing.T) {
	svc, profileRepo, queueRepo, api := newProfileSyncService(t)

	_, err := svc.UpdateProperty("amit@example.com", models.PropFirstName, "Amit")
	require.NoError(t, err)
	require.NoError(t, profileRepo.MarkSynced("amit@example.com", timeutil.NowMillis()))

	items, err := queueRepo.GetAll()
	require.NoError(t, err)
	require.Len(t, items, 1)

	done, err := svc.PushQueued(context.Background(), items[0])
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, api.updates, "settled edits must not hit the server again")
}

func TestPushQueuedDropsItemForMissingProfile(t *testing.T) {
	svc, _, _, _ := newProfileSyncService(t)

	item := &models.SyncQueueItem{
		Type:     models.QueueTypeProfile,
		EntityID: "ghost@example.com",
		Property: models.PropFirstName,
	}

	done, err := svc.PushQueued(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, done)
}
