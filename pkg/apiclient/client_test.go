package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshingSource struct {
	mu        sync.Mutex
	current   string
	next      string
	refreshes int
}

func (s *refreshingSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *refreshingSource) Refresh(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	s.current = s.next
	return s.current, nil
}

func TestPunchInSendsAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotReq PunchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"timestamp":"2026-03-14T10:30:00Z"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewStaticTokenSource("token-123"))

	resp, err := client.PunchIn(context.Background(), PunchRequest{
		Timestamp: 1773484200000,
		LatLon:    "12.97,77.59",
		Address:   "Office",
		PunchType: "GEO",
		ModuleID:  "attendance",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, int64(1773484200000), gotReq.Timestamp)
	assert.Equal(t, "GEO", gotReq.PunchType)
}

func TestUnauthorizedRefreshesTokenAndRetries(t *testing.T) {
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"email":"a@b.c","userId":"u1","lastSyncedAt":"2026-03-14T10:30:00Z"}`))
	}))
	defer srv.Close()

	source := &refreshingSource{current: "stale", next: "fresh"}
	client := NewClient(srv.URL, source)

	resp, err := client.Profile(context.Background(), "a@b.c")
	require.NoError(t, err)

	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, source.refreshes)
}

func TestPermanentAndTransientErrors(t *testing.T) {
	status := http.StatusForbidden

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"nope"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewStaticTokenSource("t"))

	_, err := client.Profile(context.Background(), "a@b.c")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "nope")

	status = http.StatusInternalServerError
	_, err = client.UpdateProfile(context.Background(), ProfileUpdateRequest{Email: "a@b.c"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestGetResponsesAreCached(t *testing.T) {
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[{"dateOfPunch":"2026-03-14","records":[{"timestamp":1773484200000,"punchDirection":"IN"}]}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewStaticTokenSource("t"))

	for i := 0; i < 3; i++ {
		days, err := client.AttendanceDays(context.Background(), "u1", "2026-03-01", "2026-03-14")
		require.NoError(t, err)
		require.Len(t, days, 1)
		assert.Equal(t, "2026-03-14", days[0].DateOfPunch)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestWritesInvalidateGetCache(t *testing.T) {
	var gets int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
			w.Write([]byte(`{"email":"a@b.c","lastSyncedAt":"2026-03-14T10:30:00Z"}`))
			return
		}
		w.Write([]byte(`{"email":"a@b.c","firstName":"Asha","lastSyncedAt":"2026-03-14T10:31:00Z"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, NewStaticTokenSource("t"))
	ctx := context.Background()

	_, err := client.Profile(ctx, "a@b.c")
	require.NoError(t, err)
	_, err = client.Profile(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&gets))

	_, err = client.UpdateProfile(ctx, ProfileUpdateRequest{Email: "a@b.c", FirstName: "Asha"})
	require.NoError(t, err)

	_, err = client.Profile(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}

func TestConcurrentIdenticalRequestsShareOneCall(t *testing.T) {
	var hits int32
	entered := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(entered)
		}
		<-release
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, NewStaticTokenSource("t"))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.AttendanceDays(context.Background(), "u1", "2026-03-01", "2026-03-14")
		}(i)
	}

	<-entered
	// Give the remaining callers time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	release <- struct{}{}

	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCancelledCallerStopsWaiting(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, NewStaticTokenSource("t"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.AttendanceDays(ctx, "u1", "2026-03-01", "2026-03-14")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}
}
