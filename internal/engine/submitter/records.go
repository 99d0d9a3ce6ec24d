// internal/engine/submitter/records.go
package submitter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"autoapply-engine/internal/models"
)

var (
	ErrDuplicateRecord  = errors.New("DUPLICATE_APPLICATION")
	ErrRecordInsertFail = errors.New("DATABASE_INSERT_FAILED")
)

// RecordStore persists the append-only application audit trail.
type RecordStore interface {
	Insert(ctx context.Context, rec models.ApplicationRecord) error
}

// PostgresRecordStore implements RecordStore against the applications
// table. The partial unique index on (user_id, job_fingerprint) for
// submitted rows is the last line of defense against duplicate
// submission; a violation surfaces as ErrDuplicateRecord.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Insert(ctx context.Context, rec models.ApplicationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, user_id, job_fingerprint, job_title, company,
			status, match_score, applied_at, job_url, external_ref, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		rec.UserID,
		rec.JobFingerprint,
		rec.JobTitle,
		rec.Company,
		string(rec.Status),
		rec.MatchScore,
		rec.AppliedAt.UTC(),
		rec.JobURL,
		rec.ExternalRef,
		rec.FailureReason,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: user %s fingerprint %s", ErrDuplicateRecord, rec.UserID, rec.JobFingerprint)
		}
		return fmt.Errorf("%w: %v", ErrRecordInsertFail, err)
	}
	return nil
}

// ListByUser returns the user's records, newest first. Used by the run
// history endpoint.
func (s *PostgresRecordStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.ApplicationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, job_fingerprint, job_title, company,
			status, match_score, applied_at, job_url, external_ref, failure_reason
		FROM applications WHERE user_id = $1
		ORDER BY applied_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var records []models.ApplicationRecord
	for rows.Next() {
		var rec models.ApplicationRecord
		var status string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.JobFingerprint, &rec.JobTitle, &rec.Company,
			&status, &rec.MatchScore, &rec.AppliedAt, &rec.JobURL, &rec.ExternalRef, &rec.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		parsed, err := models.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		rec.Status = parsed
		records = append(records, rec)
	}
	return records, rows.Err()
}
