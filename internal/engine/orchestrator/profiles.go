// internal/engine/orchestrator/profiles.go
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"autoapply-engine/internal/models"
)

var ErrProfileNotFound = errors.New("user profile not found")

// ProfileStore loads the user's application profile.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (models.UserProfile, error)
}

// PostgresProfileStore implements ProfileStore against the user_profiles
// table. cv_analysis and criteria are jsonb columns.
type PostgresProfileStore struct {
	db *sql.DB
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	var (
		profile     models.UserProfile
		cvAnalysis  []byte
		criteria    []byte
		phone       sql.NullString
		languages   pq.StringArray
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, email, phone, cv_text, cv_analysis, criteria, spoken_languages
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&profile.UserID, &profile.Email, &phone, &profile.CVText, &cvAnalysis, &criteria, &languages)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}

	profile.Phone = phone.String
	profile.SpokenLanguages = languages

	if len(cvAnalysis) > 0 {
		if err := json.Unmarshal(cvAnalysis, &profile.CVAnalysis); err != nil {
			return models.UserProfile{}, fmt.Errorf("decode cv analysis: %w", err)
		}
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &profile.Criteria); err != nil {
			return models.UserProfile{}, fmt.Errorf("decode criteria: %w", err)
		}
	}
	return profile, nil
}
