// internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "autoapply-engine/internal/common/errors"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/engine/quota"
	"autoapply-engine/internal/models"
)

type fakeRunner struct {
	summary models.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) RunForUser(ctx context.Context, userID string) (models.RunSummary, error) {
	f.calls++
	if f.err != nil {
		return models.RunSummary{}, f.err
	}
	return f.summary, nil
}

type fakeQuotaReader struct {
	status models.QuotaStatus
	err    error
	calls  int
}

func (f *fakeQuotaReader) Status(ctx context.Context, userID string) (models.QuotaStatus, error) {
	f.calls++
	if f.err != nil {
		return models.QuotaStatus{}, f.err
	}
	return f.status, nil
}

type fakeLister struct {
	records []models.ApplicationRecord
	err     error
}

func (f *fakeLister) ListByUser(ctx context.Context, userID string, limit int) ([]models.ApplicationRecord, error) {
	return f.records, f.err
}

type testEnv struct {
	server *httptest.Server
	runner *fakeRunner
	quota  *fakeQuotaReader
	lister *fakeLister
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	runner := &fakeRunner{summary: models.RunSummary{UserID: "user-1", Submitted: 2}}
	quotaReader := &fakeQuotaReader{status: models.QuotaStatus{
		Tier: models.TierPremium, Limit: 30, Used: 5, Remaining: 25,
		ResetTime: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}}
	lister := &fakeLister{}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	handler := NewHandler(runner, quotaReader, lister, cache, time.Minute, nil, logger.NewNoOpLogger())
	server := httptest.NewServer(NewRouter(handler, logger.NewNoOpLogger()))
	t.Cleanup(server.Close)

	return &testEnv{server: server, runner: runner, quota: quotaReader, lister: lister, redis: mr}
}

func doRequest(t *testing.T, env *testEnv, method, path, userID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, env.server.URL+path, nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTriggerJobSearchAccepted(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var summary models.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 2, summary.Submitted)
}

func TestTriggerJobSearchRequiresUser(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.runner.calls)
}

func TestTriggerJobSearchConflict(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = stderrors.NewRunAlreadyInProgressError("user-1")

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTriggerJobSearchQuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = &quota.ExceededError{ResetAt: time.Now().UTC().Add(2 * time.Hour)}

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	retryAfter := resp.Header.Get("Retry-After")
	require.NotEmpty(t, retryAfter)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "QUOTA_EXCEEDED", body.Code)
	assert.NotEmpty(t, body.Details["resetAt"])
}

func TestTriggerJobSearchIncompleteProfile(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = stderrors.NewIncompleteProfileError([]string{"cv", "criteria"})

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INCOMPLETE_PROFILE", body.Code)
	assert.ElementsMatch(t, []interface{}{"cv", "criteria"}, body.Details["missingFields"])
}

func TestTriggerJobSearchUnexpectedErrorIs500(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = errors.New("postgres down")

	resp := doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSubscriptionStatus(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, env, http.MethodGet, "/subscription/user", "user-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.QuotaStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 25, status.Remaining)
	assert.Equal(t, models.TierPremium, status.Tier)
}

func TestSubscriptionStatusServedFromCache(t *testing.T) {
	env := newTestEnv(t)

	doRequest(t, env, http.MethodGet, "/subscription/user", "user-1")
	doRequest(t, env, http.MethodGet, "/subscription/user", "user-1")

	assert.Equal(t, 1, env.quota.calls, "second read must hit the cache")
}

func TestTriggerInvalidatesStatusCache(t *testing.T) {
	env := newTestEnv(t)

	doRequest(t, env, http.MethodGet, "/subscription/user", "user-1")
	require.True(t, env.redis.Exists("quota:user-1"))

	doRequest(t, env, http.MethodPost, "/trigger-job-search", "user-1")
	assert.False(t, env.redis.Exists("quota:user-1"), "a run changes usage, so the cached view must go")
}

func TestSubscriptionStatusUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	env.quota.err = quota.ErrUserNotFound

	resp := doRequest(t, env, http.MethodGet, "/subscription/user", "ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplicationsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.lister.records = []models.ApplicationRecord{
		{ID: "rec-1", UserID: "user-1", Status: models.StatusSubmitted},
	}

	resp := doRequest(t, env, http.MethodGet, "/applications?limit=10", "user-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var records []models.ApplicationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
}

func TestApplicationsRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, env, http.MethodGet, "/applications?limit=abc", "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp := doRequest(t, env, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
