// internal/engine/dedup/store.go
package dedup

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/models"
)

// Store indexes which (user, fingerprint) pairs have already been acted
// on. The hot path is a redis set per user; the applications table is the
// authoritative fallback when redis cannot answer.
type Store struct {
	redis  *redis.Client
	db     *sql.DB
	logger logger.Logger
}

func NewStore(rdb *redis.Client, db *sql.DB, log logger.Logger) *Store {
	return &Store{
		redis:  rdb,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "dedup-store"}),
	}
}

func seenKey(userID string) string {
	return "seen:" + userID
}

// FilterUnseen returns the candidates whose fingerprints have no
// submitted record for the user. It is a pure read: the index is mutated
// only by MarkSeen on the submitter's commit path, so two concurrent runs
// reading at the same instant each see the full candidate set prior to
// their own writes.
func (s *Store) FilterUnseen(ctx context.Context, userID string, candidates []models.JobCandidate) ([]models.JobCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	fingerprints := make([]string, len(candidates))
	for i, c := range candidates {
		fingerprints[i] = Fingerprint(c)
	}

	seen, err := s.seenSet(ctx, userID, fingerprints)
	if err != nil {
		return nil, err
	}

	unseen := make([]models.JobCandidate, 0, len(candidates))
	for i, c := range candidates {
		if !seen[fingerprints[i]] {
			unseen = append(unseen, c)
		}
	}
	return unseen, nil
}

// seenSet answers membership from redis, falling back to the
// applications table when redis is unavailable.
func (s *Store) seenSet(ctx context.Context, userID string, fingerprints []string) (map[string]bool, error) {
	members := make([]interface{}, len(fingerprints))
	for i, fp := range fingerprints {
		members[i] = fp
	}

	seen := make(map[string]bool, len(fingerprints))
	results, err := s.redis.SMIsMember(ctx, seenKey(userID), members...).Result()
	if err == nil {
		for i, isMember := range results {
			seen[fingerprints[i]] = isMember
		}
		return seen, nil
	}

	s.logger.Warn("redis seen-set unavailable, falling back to database", map[string]interface{}{
		"userId": userID,
		"error":  err.Error(),
	})

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_fingerprint FROM applications
		WHERE user_id = $1 AND status = 'submitted' AND job_fingerprint = ANY($2)`,
		userID, pq.Array(fingerprints))
	if err != nil {
		return nil, fmt.Errorf("dedup fallback query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("dedup fallback scan: %w", err)
		}
		seen[fp] = true
	}
	return seen, rows.Err()
}

// MarkSeen records a handled fingerprint. Called only by the submitter in
// the same logical transaction as record creation.
func (s *Store) MarkSeen(ctx context.Context, userID, fingerprint string) error {
	if err := s.redis.SAdd(ctx, seenKey(userID), fingerprint).Err(); err != nil {
		// The postgres unique index still guards against duplicates; a
		// redis blip must not fail a submitted record.
		s.logger.Warn("mark seen failed", map[string]interface{}{
			"userId":      userID,
			"fingerprint": fingerprint,
			"error":       err.Error(),
		})
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}
