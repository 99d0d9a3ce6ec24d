// internal/engine/quota/store.go
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autoapply-engine/internal/models"
)

var (
	ErrUserNotFound = errors.New("QUOTA_STATE_NOT_FOUND")
)

// Store persists one UserQuotaState row per user. CompareAndSwap is the
// only mutation: it succeeds only when the stored counters still match
// prev, which makes concurrent reserve/release linearizable per user.
type Store interface {
	Get(ctx context.Context, userID string) (models.UserQuotaState, error)
	CompareAndSwap(ctx context.Context, prev, next models.UserQuotaState) (bool, error)
}

// PostgresStore implements Store against the user_quota table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (models.UserQuotaState, error) {
	var state models.UserQuotaState
	var windowStart time.Time

	query := `SELECT user_id, tier, limit_per_window, window_kind, used_in_window, window_start
		FROM user_quota WHERE user_id = $1`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID, &state.Tier, &state.LimitPerWindow, &state.WindowKind,
		&state.UsedInWindow, &windowStart,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserQuotaState{}, fmt.Errorf("%w: user %s", ErrUserNotFound, userID)
		}
		return models.UserQuotaState{}, fmt.Errorf("quota state query: %w", err)
	}

	state.WindowStart = windowStart.UTC()
	return state, nil
}

// CompareAndSwap updates the counters only if the row still carries the
// previous values. A zero row count signals a concurrent writer won; the
// tracker re-reads and retries.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, prev, next models.UserQuotaState) (bool, error) {
	query := `UPDATE user_quota
		SET used_in_window = $1, window_start = $2
		WHERE user_id = $3 AND used_in_window = $4 AND window_start = $5`
	res, err := s.db.ExecContext(ctx, query,
		next.UsedInWindow, next.WindowStart.UTC(),
		prev.UserID, prev.UsedInWindow, prev.WindowStart.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("quota state update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("quota state update result: %w", err)
	}
	return affected == 1, nil
}
