// internal/engine/quota/tracker.go
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/models"
)

const casMaxAttempts = 8

var (
	ErrConflict = errors.New("QUOTA_UPDATE_CONFLICT")
)

// ExceededError is returned when a reserve request cannot grant a single
// unit. It carries the time remaining until the window resets.
type ExceededError struct {
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// RetryAfter returns the wait until the next window boundary.
func (e *ExceededError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TierLimit is the product rule for one subscription tier.
type TierLimit struct {
	Limit      int
	WindowKind models.WindowKind
}

// Tracker owns UserQuotaState. Reserve and Release are the only paths
// that mutate usage, each a compare-and-swap loop against the store so
// two concurrent triggers for the same user can never jointly overdraw
// the window.
type Tracker struct {
	store  Store
	tiers  map[models.Tier]TierLimit
	now    func() time.Time
	logger logger.Logger
}

func NewTracker(store Store, log logger.Logger) *Tracker {
	return &Tracker{
		store:  store,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "quota-tracker"}),
	}
}

// WithClock overrides the time source (tests).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// WithTierLimits overlays the configured product rules on top of stored
// rows, keyed by tier. Limits live in config so a product change applies
// on the next read instead of needing a data migration. Rows whose tier
// is absent from the table keep their stored values.
func (t *Tracker) WithTierLimits(limits map[models.Tier]TierLimit) *Tracker {
	t.tiers = limits
	return t
}

func (t *Tracker) applyTier(state models.UserQuotaState) models.UserQuotaState {
	if tl, ok := t.tiers[state.Tier]; ok {
		state.LimitPerWindow = tl.Limit
		state.WindowKind = tl.WindowKind
	}
	return state
}

// Reserve grants min(requested, remaining) units from the user's current
// window, rolling the window over first when a boundary has been crossed.
// Returns ExceededError when nothing can be granted.
func (t *Tracker) Reserve(ctx context.Context, userID string, requested int) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("requested count must be positive, got %d", requested)
	}

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		prev, err := t.store.Get(ctx, userID)
		if err != nil {
			return 0, err
		}
		prev = t.applyTier(prev)

		now := t.now()
		next := prev
		if rolledOver(prev, now) {
			next.UsedInWindow = 0
			next.WindowStart = AlignWindowStart(now, prev.WindowKind)
		}

		granted := next.LimitPerWindow - next.UsedInWindow
		if granted > requested {
			granted = requested
		}
		if granted <= 0 {
			return 0, &ExceededError{ResetAt: NextReset(now, prev.WindowKind)}
		}

		next.UsedInWindow += granted
		ok, err := t.store.CompareAndSwap(ctx, prev, next)
		if err != nil {
			return 0, err
		}
		if ok {
			t.logger.Debug("quota reserved", map[string]interface{}{
				"userId":    userID,
				"requested": requested,
				"granted":   granted,
				"used":      next.UsedInWindow,
				"limit":     next.LimitPerWindow,
			})
			return granted, nil
		}
		// Lost the race; re-read and retry.
	}

	return 0, fmt.Errorf("%w: user %s", ErrConflict, userID)
}

// Release returns unused reservation units to the window. Usage never
// goes below zero, so a release that lands after a window rollover is a
// no-op rather than a negative balance.
func (t *Tracker) Release(ctx context.Context, userID string, unused int) error {
	if unused <= 0 {
		return nil
	}

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		prev, err := t.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		prev = t.applyTier(prev)

		now := t.now()
		next := prev
		if rolledOver(prev, now) {
			next.UsedInWindow = 0
			next.WindowStart = AlignWindowStart(now, prev.WindowKind)
		}

		next.UsedInWindow -= unused
		if next.UsedInWindow < 0 {
			next.UsedInWindow = 0
		}

		ok, err := t.store.CompareAndSwap(ctx, prev, next)
		if err != nil {
			return err
		}
		if ok {
			t.logger.Debug("quota released", map[string]interface{}{
				"userId":   userID,
				"returned": unused,
				"used":     next.UsedInWindow,
			})
			return nil
		}
	}

	return fmt.Errorf("%w: user %s", ErrConflict, userID)
}

// Status returns the user-facing quota view, applying any pending window
// rollover to the reported numbers without persisting it.
func (t *Tracker) Status(ctx context.Context, userID string) (models.QuotaStatus, error) {
	state, err := t.store.Get(ctx, userID)
	if err != nil {
		return models.QuotaStatus{}, err
	}
	state = t.applyTier(state)

	now := t.now()
	used := state.UsedInWindow
	if rolledOver(state, now) {
		used = 0
	}

	return models.QuotaStatus{
		Tier:      state.Tier,
		Limit:     state.LimitPerWindow,
		Used:      used,
		Remaining: state.LimitPerWindow - used,
		ResetTime: NextReset(now, state.WindowKind),
	}, nil
}

// NextResetFor reports the upcoming boundary for the user's window kind.
func (t *Tracker) NextResetFor(ctx context.Context, userID string) (time.Time, error) {
	state, err := t.store.Get(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return NextReset(t.now(), t.applyTier(state).WindowKind), nil
}
