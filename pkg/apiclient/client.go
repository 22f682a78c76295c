package apiclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	requestTimeout = 30 * time.Second
	cacheSize      = 128
	cacheTTL       = 30 * time.Second
	maxErrorBody   = 512
)

// APIError describes a non-2xx response from the attendance server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: server returned %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying the same request is pointless.
// Auth failures are excluded because the client retries those itself after a
// token refresh.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusUnauthorized
}

// IsPermanent reports whether err is an APIError that no retry can fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Permanent()
}

// Client talks to the attendance server. Identical in-flight requests are
// coalesced into one HTTP call, and successful GET bodies are cached for a
// short TTL so bursts of reads do not hammer the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *logrus.Logger

	flight   singleflight.Group
	getCache *expirable.LRU[string, []byte]
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
		logger:     logger,
		getCache:   expirable.NewLRU[string, []byte](cacheSize, nil, cacheTTL),
	}
}

// PunchIn records a check-in on the server.
func (c *Client) PunchIn(ctx context.Context, req PunchRequest) (*PunchResponse, error) {
	return c.punch(ctx, "/api/attendance/punch-in", req)
}

// PunchOut records a check-out on the server.
func (c *Client) PunchOut(ctx context.Context, req PunchRequest) (*PunchResponse, error) {
	return c.punch(ctx, "/api/attendance/punch-out", req)
}

func (c *Client) punch(ctx context.Context, path string, req PunchRequest) (*PunchResponse, error) {
	data, err := c.do(ctx, http.MethodPost, path, nil, req)
	if err != nil {
		return nil, err
	}

	var resp PunchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode punch response: %w", err)
	}
	return &resp, nil
}

// AttendanceDays fetches the server's day-grouped punch records for the
// given user and inclusive date range (YYYY-MM-DD).
func (c *Client) AttendanceDays(ctx context.Context, userID, startDate, endDate string) ([]ServerAttendanceDay, error) {
	params := url.Values{}
	if userID != "" {
		params.Set("userId", userID)
	}
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}

	data, err := c.do(ctx, http.MethodGet, "/api/attendance/days", params, nil)
	if err != nil {
		return nil, err
	}

	var days []ServerAttendanceDay
	if err := json.Unmarshal(data, &days); err != nil {
		return nil, fmt.Errorf("failed to decode attendance days: %w", err)
	}
	return days, nil
}

// Profile fetches the server-side profile for an email address.
func (c *Client) Profile(ctx context.Context, email string) (*ProfileResponse, error) {
	params := url.Values{}
	params.Set("email", email)

	data, err := c.do(ctx, http.MethodGet, "/api/auth/profile", params, nil)
	if err != nil {
		return nil, err
	}

	var resp ProfileResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &resp, nil
}

// UpdateProfile pushes changed profile fields to the server and returns the
// server's view, including its new lastSyncedAt.
func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdateRequest) (*ProfileResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/auth/update-profile", nil, req)
	if err != nil {
		return nil, err
	}

	var resp ProfileResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode update-profile response: %w", err)
	}
	return &resp, nil
}

// do runs one API request. Concurrent calls with the same method, URL and
// body share a single HTTP round trip; a caller whose context ends abandons
// the shared call without cancelling it for the others.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	key := requestKey(method, endpoint, payload)

	if method == http.MethodGet {
		if cached, ok := c.getCache.Get(key); ok {
			c.logger.WithField("path", path).Debug("Serving GET from response cache")
			return append([]byte(nil), cached...), nil
		}
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		data, err := c.roundTrip(flightCtx, method, endpoint, payload)
		if err != nil {
			return nil, err
		}
		if method == http.MethodGet {
			c.getCache.Add(key, data)
		} else {
			// A successful write may change what reads would return.
			c.getCache.Purge()
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]byte(nil), res.Val.([]byte)...), nil
	}
}

// roundTrip performs the HTTP call, refreshing the token and retrying once
// if the server rejects it with 401.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain API token: %w", err)
	}

	data, err := c.attempt(ctx, method, endpoint, payload, token)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.logger.WithFields(logrus.Fields{
			"method":   method,
			"endpoint": endpoint,
		}).Info("Token rejected, refreshing and retrying")

		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh API token: %w", err)
		}
		return c.attempt(ctx, method, endpoint, payload, token)
	}

	return data, err
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, token string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.WithFields(logrus.Fields{
			"method":   method,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("API request rejected")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}

	return data, nil
}

func requestKey(method, endpoint string, payload []byte) string {
	if len(payload) == 0 {
		return method + " " + endpoint
	}
	sum := sha256.Sum256(payload)
	return method + " " + endpoint + " " + hex.EncodeToString(sum[:])
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
