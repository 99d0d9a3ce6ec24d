// internal/engine/submitter/submitter.go
package submitter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"autoapply-engine/internal/common/breaker"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/common/metrics"
	"autoapply-engine/internal/engine/dedup"
	"autoapply-engine/internal/models"
)

var (
	// ErrRejected marks a logical refusal by the submission channel.
	// Never retried.
	ErrRejected = errors.New("SUBMISSION_REJECTED")
)

// SubmitResult is the submission channel's acknowledgement.
type SubmitResult struct {
	Accepted    bool   `json:"accepted"`
	ExternalRef string `json:"externalRef,omitempty"`
}

// Channel is the external submission adapter (email or platform).
type Channel interface {
	Submit(ctx context.Context, userID string, candidate models.JobCandidate, cvDocument string) (SubmitResult, error)
}

// SeenMarker is the dedup commit hook.
type SeenMarker interface {
	MarkSeen(ctx context.Context, userID, fingerprint string) error
}

// QuotaReleaser returns a failed candidate's reserved unit to the window.
type QuotaReleaser interface {
	Release(ctx context.Context, userID string, unused int) error
}

// Config tunes the per-candidate retry policy.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	CallTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		CallTimeout:    15 * time.Second,
	}
}

// Submitter drives one candidate at a time through the submission state
// machine: selected to submitting to submitted or failed, or straight
// to skipped when the batch budget is gone.
type Submitter struct {
	channel Channel
	records RecordStore
	seen    SeenMarker
	quota   QuotaReleaser
	config  Config
	logger  logger.Logger
}

func New(channel Channel, records RecordStore, seen SeenMarker, quota QuotaReleaser, cfg Config, log logger.Logger) *Submitter {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	return &Submitter{
		channel: channel,
		records: records,
		seen:    seen,
		quota:   quota,
		config:  cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "submitter"}),
	}
}

// Process takes one ranked candidate to a terminal state and returns its
// record. The returned error is non-nil only for run-fatal conditions
// (storage failure) or when the run was cancelled before this candidate
// started; per-candidate failures terminate in the record's status
// instead.
func (s *Submitter) Process(ctx context.Context, userID string, match models.MatchResult, cvDocument string, budget *Budget, brk *breaker.Breaker) (models.ApplicationRecord, error) {
	if err := ctx.Err(); err != nil {
		// Cancelled before starting: claim no budget, write no record.
		// The run-end release covers this candidate's unit.
		return models.ApplicationRecord{}, err
	}

	started := time.Now()
	rec := models.ApplicationRecord{
		ID:             uuid.New().String(),
		UserID:         userID,
		JobFingerprint: dedup.Fingerprint(match.Candidate),
		JobTitle:       match.Candidate.Title,
		Company:        match.Candidate.Company,
		Status:         models.StatusSelected,
		MatchScore:     match.Score,
		JobURL:         match.Candidate.URL,
	}

	if !budget.TryAcquire() {
		// Earlier concurrent successes exhausted the reservation; no
		// external call is made.
		rec.Status = models.StatusSkipped
		rec.FailureReason = "batch quota exhausted"
		return s.commit(rec, started)
	}

	rec.Status = models.StatusSubmitting

	if !brk.Allow() {
		// Dependency is down; short-circuit instead of burning the
		// user's window against it.
		metrics.BreakerTrips.Inc()
		return s.fail(rec, "circuit breaker open", started)
	}

	result, err := s.submitWithRetry(ctx, userID, match.Candidate, cvDocument, brk)
	if err != nil {
		reason := "submission failed after retries"
		if errors.Is(err, ErrRejected) {
			reason = "submission rejected by channel"
		}
		s.logger.Warn("candidate submission failed", map[string]interface{}{
			"userId":  userID,
			"company": match.Candidate.Company,
			"title":   match.Candidate.Title,
			"error":   err.Error(),
		})
		return s.fail(rec, reason, started)
	}

	rec.Status = models.StatusSubmitted
	rec.ExternalRef = result.ExternalRef
	rec.AppliedAt = time.Now().UTC()

	// The external side effect happened; the record must land even if
	// the run context died while the channel call was in flight.
	writeCtx, cancel := terminalWriteContext()
	defer cancel()

	// Record creation and MarkSeen form one logical transaction: a
	// submitted record must never exist without its fingerprint marked
	// seen, and vice versa.
	if err := s.records.Insert(writeCtx, rec); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			// The unique index fired despite the pre-check. A defect,
			// not a user error: mark this candidate failed and let the
			// run continue.
			s.logger.Error("duplicate fingerprint constraint fired despite pre-check", map[string]interface{}{
				"userId":      userID,
				"fingerprint": rec.JobFingerprint,
			})
			rec.ID = uuid.New().String()
			return s.fail(rec, "duplicate application detected at commit", started)
		}
		return rec, err
	}
	if err := s.seen.MarkSeen(writeCtx, userID, rec.JobFingerprint); err != nil {
		// The unique index covers the gap until redis recovers.
		s.logger.Warn("seen-set update failed after record commit", map[string]interface{}{
			"userId":      userID,
			"fingerprint": rec.JobFingerprint,
		})
	}

	metrics.SubmissionsTotal.WithLabelValues(string(rec.Status)).Inc()
	metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
	return rec, nil
}

// submitWithRetry retries transient channel errors with exponential
// backoff. Logical rejections are terminal on the first response.
func (s *Submitter) submitWithRetry(ctx context.Context, userID string, candidate models.JobCandidate, cvDocument string, brk *breaker.Breaker) (SubmitResult, error) {
	backoff := s.config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
		result, err := s.channel.Submit(callCtx, userID, candidate, cvDocument)
		cancel()

		if err == nil {
			if !result.Accepted {
				brk.Success()
				return SubmitResult{}, ErrRejected
			}
			brk.Success()
			return result, nil
		}

		if errors.Is(err, ErrRejected) {
			brk.Success()
			return SubmitResult{}, err
		}
		if ctx.Err() != nil {
			// The run itself is done; don't keep retrying into a dead
			// context.
			brk.Failure()
			return SubmitResult{}, ctx.Err()
		}

		lastErr = err
		s.logger.Debug("transient submission error, retrying", map[string]interface{}{
			"userId":  userID,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt < s.config.MaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				brk.Failure()
				return SubmitResult{}, ctx.Err()
			}
			backoff *= 2
		}
	}

	brk.Failure()
	return SubmitResult{}, lastErr
}

// fail writes the failed terminal record and returns the claimed quota
// unit: a failed submission must not count against the user's limit.
func (s *Submitter) fail(rec models.ApplicationRecord, reason string, started time.Time) (models.ApplicationRecord, error) {
	rec.Status = models.StatusFailed
	rec.FailureReason = reason
	rec.AppliedAt = time.Now().UTC()

	releaseCtx, cancel := terminalWriteContext()
	defer cancel()
	if err := s.quota.Release(releaseCtx, rec.UserID, 1); err != nil {
		s.logger.Error("quota release failed for failed candidate", map[string]interface{}{
			"userId": rec.UserID,
			"error":  err.Error(),
		})
	}

	return s.commit(rec, started)
}

func (s *Submitter) commit(rec models.ApplicationRecord, started time.Time) (models.ApplicationRecord, error) {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	writeCtx, cancel := terminalWriteContext()
	defer cancel()
	if err := s.records.Insert(writeCtx, rec); err != nil {
		return rec, err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(rec.Status)).Inc()
	metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
	return rec, nil
}

// terminalWriteContext detaches terminal-state writes from the run
// context: a cancelled run must still land its records and give reserved
// units back to the window.
func terminalWriteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
