// internal/engine/orchestrator/profiles_test.go
package orchestrator

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresProfileStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"user_id", "email", "phone", "cv_text", "cv_analysis", "criteria", "spoken_languages",
	}).AddRow(
		"user-1", "user@example.com", "+4915112345678", "backend engineer",
		[]byte(`{"skills": ["go"]}`),
		[]byte(`{"keywords": ["go"], "remoteOnly": true}`),
		"{en,de}",
	)
	mock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	store := NewPostgresProfileStore(db)
	profile, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", profile.Email)
	assert.Equal(t, "+4915112345678", profile.Phone)
	assert.Equal(t, []string{"en", "de"}, profile.SpokenLanguages)
	assert.Equal(t, true, profile.Criteria["remoteOnly"])
	assert.Empty(t, profile.MissingFields())
}

func TestPostgresProfileStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE user_id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	store := NewPostgresProfileStore(db)
	_, err = store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
