// internal/engine/orchestrator/orchestrator.go

// Package orchestrator drives one automation run end to end: profile
// gate, candidate fetch, dedup, quota reservation, ranking, concurrent
// submission and final accounting.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"autoapply-engine/internal/common/breaker"
	stderrors "autoapply-engine/internal/common/errors"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/common/metrics"
	"autoapply-engine/internal/common/validation"
	"autoapply-engine/internal/engine/dedup"
	"autoapply-engine/internal/engine/notify"
	"autoapply-engine/internal/engine/submitter"
	"autoapply-engine/internal/models"
)

// QuotaService is the tracker surface a run needs.
type QuotaService interface {
	Reserve(ctx context.Context, userID string, requested int) (int, error)
	Release(ctx context.Context, userID string, unused int) error
	NextResetFor(ctx context.Context, userID string) (time.Time, error)
}

// Deduper filters out candidates the user already applied to.
type Deduper interface {
	FilterUnseen(ctx context.Context, userID string, candidates []models.JobCandidate) ([]models.JobCandidate, error)
}

// Ranker scores and orders eligible candidates.
type Ranker interface {
	Rank(ctx context.Context, profile models.UserProfile, candidates []models.JobCandidate) ([]models.MatchResult, error)
}

// Source lists candidate postings for the user's criteria.
type Source interface {
	ListCandidates(ctx context.Context, criteria map[string]interface{}, limit int) ([]models.JobCandidate, error)
}

// Processor takes one ranked candidate to a terminal state.
type Processor interface {
	Process(ctx context.Context, userID string, match models.MatchResult, cvDocument string, budget *submitter.Budget, brk *breaker.Breaker) (models.ApplicationRecord, error)
}

// Locker serializes runs per user.
type Locker interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// Notifier delivers run events, best effort.
type Notifier interface {
	Dispatch(event models.Event, profile models.UserProfile)
}

// Config tunes one run.
type Config struct {
	PoolSize         int
	MaxBatchSize     int
	RunTimeout       time.Duration
	BreakerThreshold int
}

func DefaultRunConfig() Config {
	return Config{
		PoolSize:         4,
		MaxBatchSize:     25,
		RunTimeout:       5 * time.Minute,
		BreakerThreshold: 3,
	}
}

type Orchestrator struct {
	profiles  ProfileStore
	quota     QuotaService
	dedup     Deduper
	source    Source
	ranker    Ranker
	processor Processor
	lock      Locker
	notifier  Notifier
	config    Config
	logger    logger.Logger
}

func New(profiles ProfileStore, quota QuotaService, deduper Deduper, source Source, ranker Ranker, processor Processor, lock Locker, notifier Notifier, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.PoolSize <= 0 {
		cfg = DefaultRunConfig()
	}
	return &Orchestrator{
		profiles:  profiles,
		quota:     quota,
		dedup:     deduper,
		source:    source,
		ranker:    ranker,
		processor: processor,
		lock:      lock,
		notifier:  notifier,
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// RunForUser executes one automation run. Exactly one run per user may
// be in flight; a second trigger fails fast with RUN_ALREADY_IN_PROGRESS.
func (o *Orchestrator) RunForUser(ctx context.Context, userID string) (models.RunSummary, error) {
	acquired, err := o.lock.Acquire(ctx, userID)
	if err != nil {
		return models.RunSummary{}, err
	}
	if !acquired {
		return models.RunSummary{}, stderrors.NewRunAlreadyInProgressError(userID)
	}
	defer func() {
		if err := o.lock.Release(context.Background(), userID); err != nil {
			o.logger.Warn("run lock release failed", map[string]interface{}{
				"userId": userID, "error": err.Error(),
			})
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, o.config.RunTimeout)
	defer cancel()

	metrics.RunsStarted.Inc()
	started := time.Now()
	summary, err := o.run(runCtx, userID, started)
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.RunsCompleted.WithLabelValues("error").Inc()
		return summary, err
	}
	metrics.RunsCompleted.WithLabelValues("ok").Inc()
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, userID string, started time.Time) (models.RunSummary, error) {
	summary := models.RunSummary{UserID: userID, StartedAt: started.UTC()}

	profile, err := o.profiles.Get(ctx, userID)
	if err != nil {
		return summary, err
	}
	if missing := profile.MissingFields(); len(missing) > 0 {
		return summary, stderrors.NewIncompleteProfileError(missing)
	}
	if err := validation.ValidateCriteria(profile.Criteria); err != nil {
		return summary, stderrors.NewCriteriaValidationFailedError(err.Error())
	}

	candidates, err := o.source.ListCandidates(ctx, profile.Criteria, o.config.MaxBatchSize)
	if err != nil {
		return summary, stderrors.NewSearchQueryFailedError(err)
	}
	candidates = dedupWithinBatch(candidates)

	unseen, err := o.dedup.FilterUnseen(ctx, userID, candidates)
	if err != nil {
		return summary, err
	}
	if len(unseen) == 0 {
		o.logger.Info("no new candidates for user", map[string]interface{}{"userId": userID})
		return o.finish(ctx, summary, profile, nil)
	}

	granted, err := o.quota.Reserve(ctx, userID, len(unseen))
	if err != nil {
		return summary, err
	}

	matches, err := o.ranker.Rank(ctx, profile, unseen)
	if err != nil {
		// Reservation must not leak when the run dies before any
		// submission.
		o.releaseQuota(userID, granted)
		return summary, err
	}

	budget := submitter.NewBudget(granted)
	brk := breaker.New(o.config.BreakerThreshold)

	var (
		mu      sync.Mutex
		records []models.ApplicationRecord
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.PoolSize)
	for _, match := range matches {
		g.Go(func() error {
			if groupCtx.Err() != nil {
				// Cancelled before this candidate started. Its unit is
				// still in the budget and goes back with the run-end
				// release.
				return nil
			}
			rec, err := o.processor.Process(groupCtx, userID, match, profile.CVText, budget, brk)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	groupErr := g.Wait()

	// Units never claimed by any candidate go back to the window.
	o.releaseQuota(userID, budget.Remaining())

	for _, rec := range records {
		switch rec.Status {
		case models.StatusSubmitted:
			summary.Submitted++
		case models.StatusFailed:
			summary.Failed++
		case models.StatusSkipped:
			summary.Skipped++
		}
	}

	if groupErr != nil {
		return summary, groupErr
	}
	return o.finish(ctx, summary, profile, records)
}

func (o *Orchestrator) finish(ctx context.Context, summary models.RunSummary, profile models.UserProfile, records []models.ApplicationRecord) (models.RunSummary, error) {
	summary.FinishedAt = time.Now().UTC()

	if resetAt, err := o.quota.NextResetFor(ctx, summary.UserID); err == nil {
		summary.NextResetAt = resetAt
	} else {
		o.logger.Warn("next reset lookup failed", map[string]interface{}{
			"userId": summary.UserID, "error": err.Error(),
		})
	}

	if o.notifier != nil {
		for _, rec := range records {
			if event, ok := notify.EventForRecord(rec); ok {
				o.notifier.Dispatch(event, profile)
			}
		}
		o.notifier.Dispatch(notify.RunCompletedEvent(summary), profile)
	}

	o.logger.Info("run finished", map[string]interface{}{
		"userId":    summary.UserID,
		"submitted": summary.Submitted,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
	return summary, nil
}

// releaseQuota uses a fresh context: the run context may already be
// cancelled and the units must still go back.
func (o *Orchestrator) releaseQuota(userID string, unused int) {
	if unused <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.quota.Release(ctx, userID, unused); err != nil {
		o.logger.Error("quota release failed at run end", map[string]interface{}{
			"userId": userID, "unused": unused, "error": err.Error(),
		})
	}
}

// dedupWithinBatch keeps the first occurrence of each fingerprint so a
// posting crawled twice in the same batch cannot be submitted twice.
func dedupWithinBatch(candidates []models.JobCandidate) []models.JobCandidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		fp := dedup.Fingerprint(c)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, c)
	}
	return out
}
