// internal/engine/submitter/records_test.go
package submitter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-engine/internal/models"
)

func sampleRecord() models.ApplicationRecord {
	return models.ApplicationRecord{
		ID:             "rec-1",
		UserID:         "user-1",
		JobFingerprint: "abc123",
		JobTitle:       "Backend Engineer",
		Company:        "Acme",
		Status:         models.StatusSubmitted,
		MatchScore:     82,
		AppliedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		JobURL:         "https://jobs.example.com/1",
		ExternalRef:    "ext-1",
	}
}

func TestPostgresRecordStoreInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := sampleRecord()
	mock.ExpectExec("INSERT INTO applications").
		WithArgs(rec.ID, rec.UserID, rec.JobFingerprint, rec.JobTitle, rec.Company,
			string(rec.Status), rec.MatchScore, rec.AppliedAt, rec.JobURL, rec.ExternalRef, rec.FailureReason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresRecordStore(db)
	require.NoError(t, store.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStoreInsertDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO applications").
		WillReturnError(&pq.Error{Code: "23505"})

	store := NewPostgresRecordStore(db)
	err = store.Insert(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrDuplicateRecord)
}

func TestPostgresRecordStoreListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := sampleRecord()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "job_fingerprint", "job_title", "company",
		"status", "match_score", "applied_at", "job_url", "external_ref", "failure_reason",
	}).AddRow(rec.ID, rec.UserID, rec.JobFingerprint, rec.JobTitle, rec.Company,
		string(rec.Status), rec.MatchScore, rec.AppliedAt, rec.JobURL, rec.ExternalRef, "")

	mock.ExpectQuery("SELECT (.+) FROM applications WHERE user_id").
		WithArgs("user-1", 50).
		WillReturnRows(rows)

	store := NewPostgresRecordStore(db)
	got, err := store.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusSubmitted, got[0].Status)
	assert.Equal(t, "ext-1", got[0].ExternalRef)
}

func TestBudgetAcquireAndRemaining(t *testing.T) {
	b := NewBudget(2)
	assert.True(t, b.TryAcquire())
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())
	assert.Equal(t, 0, b.Remaining())

	b2 := NewBudget(3)
	assert.True(t, b2.TryAcquire())
	assert.Equal(t, 2, b2.Remaining())
}
