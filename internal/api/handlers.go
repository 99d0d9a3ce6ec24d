// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "autoapply-engine/internal/common/errors"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/common/metrics"
	"autoapply-engine/internal/engine/quota"
	"autoapply-engine/internal/models"
)

// Runner triggers one automation run for a user.
type Runner interface {
	RunForUser(ctx context.Context, userID string) (models.RunSummary, error)
}

// QuotaReader serves the subscription status view.
type QuotaReader interface {
	Status(ctx context.Context, userID string) (models.QuotaStatus, error)
}

// RecordLister serves the application history view.
type RecordLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ApplicationRecord, error)
}

// Pinger reports readiness of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	runner   Runner
	quota    QuotaReader
	records  RecordLister
	cache    *redis.Client
	cacheTTL time.Duration
	pingers  map[string]Pinger
	logger   logger.Logger
}

func NewHandler(runner Runner, quotaReader QuotaReader, records RecordLister, cache *redis.Client, cacheTTL time.Duration, pingers map[string]Pinger, log logger.Logger) *Handler {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Handler{
		runner:   runner,
		quota:    quotaReader,
		records:  records,
		cache:    cache,
		cacheTTL: cacheTTL,
		pingers:  pingers,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeJSON(w, status, errorBody{Code: code, Message: message, Details: details})
}

// TriggerJobSearch runs one automation run synchronously and answers
// with its summary. Trigger-level failures map to dedicated statuses so
// clients can react without parsing error text.
func (h *Handler) TriggerJobSearch(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	summary, err := h.runner.RunForUser(r.Context(), userID)
	if err != nil {
		h.writeRunError(w, userID, err)
		return
	}

	// The status cache is stale the moment a run consumes quota.
	h.invalidateStatusCache(r.Context(), userID)

	writeJSON(w, http.StatusAccepted, summary)
}

func (h *Handler) writeRunError(w http.ResponseWriter, userID string, err error) {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		metrics.QuotaExhaustions.Inc()
		retryAfter := exceeded.RetryAfter(time.Now().UTC())
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, string(stderrors.ErrCodeQuotaExceeded),
			"application quota exhausted", map[string]interface{}{
				"resetAt": exceeded.ResetAt.Format(time.RFC3339),
			})
		return
	}

	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		switch stdErr.Code {
		case stderrors.ErrCodeRunAlreadyInProgress:
			writeError(w, http.StatusConflict, string(stdErr.Code), stdErr.Message, nil)
			return
		case stderrors.ErrCodeIncompleteProfile:
			writeError(w, http.StatusBadRequest, string(stdErr.Code), stdErr.Message, stdErr.Metadata)
			return
		case stderrors.ErrCodeCriteriaValidationFailed:
			writeError(w, http.StatusBadRequest, string(stdErr.Code), stdErr.Message, nil)
			return
		case stderrors.ErrCodeQuotaExceeded:
			writeError(w, http.StatusTooManyRequests, string(stdErr.Code), stdErr.Message, nil)
			return
		}
	}

	h.logger.Error("run failed", map[string]interface{}{
		"userId": userID,
		"error":  err.Error(),
	})
	writeError(w, http.StatusInternalServerError, "INTERNAL", "run failed", nil)
}

func statusCacheKey(userID string) string {
	return "quota:" + userID
}

// SubscriptionStatus serves the user's quota view, cached briefly in
// redis to keep polling dashboards off PostgreSQL.
func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	ctx := r.Context()

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, statusCacheKey(userID)).Bytes(); err == nil {
			var status models.QuotaStatus
			if json.Unmarshal(cached, &status) == nil {
				writeJSON(w, http.StatusOK, status)
				return
			}
		}
	}

	status, err := h.quota.Status(ctx, userID)
	if err != nil {
		if errors.Is(err, quota.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "UNKNOWN_USER", fmt.Sprintf("no subscription for user %s", userID), nil)
			return
		}
		h.logger.Error("quota status lookup failed", map[string]interface{}{
			"userId": userID, "error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "INTERNAL", "status lookup failed", nil)
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(status); err == nil {
			h.cache.Set(ctx, statusCacheKey(userID), payload, h.cacheTTL)
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// Applications serves the user's submission history, newest first.
func (h *Handler) Applications(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", nil)
			return
		}
		limit = parsed
	}

	records, err := h.records.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("application history lookup failed", map[string]interface{}{
			"userId": userID, "error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "INTERNAL", "history lookup failed", nil)
		return
	}
	if records == nil {
		records = []models.ApplicationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Healthz reports liveness of the backing services.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, pinger := range h.pingers {
		if err := pinger.Ping(ctx); err != nil {
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) invalidateStatusCache(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, statusCacheKey(userID)).Err(); err != nil {
		h.logger.Warn("status cache invalidation failed", map[string]interface{}{
			"userId": userID, "error": err.Error(),
		})
	}
}
