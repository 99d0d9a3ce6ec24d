// internal/adapters/channel/channel_test.go
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/engine/submitter"
	"autoapply-engine/internal/models"
)

func sampleCandidate() models.JobCandidate {
	return models.JobCandidate{
		SourceID:   "j1",
		Title:      "Backend Engineer",
		Company:    "Acme",
		URL:        "https://jobs.example.com/j1",
		ApplyEmail: "jobs@acme.example.com",
	}
}

func TestPlatformChannelAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/applications", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var req platformRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)
		assert.Equal(t, "j1", req.JobID)

		json.NewEncoder(w).Encode(platformResponse{ApplicationID: "app-42", Status: "received"})
	}))
	defer srv.Close()

	ch := NewPlatformChannel(srv.URL, "key-1", time.Second, logger.NewNoOpLogger())
	result, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv text")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, "app-42", result.ExternalRef)
}

func TestPlatformChannelRejectionIs4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "position closed", http.StatusConflict)
	}))
	defer srv.Close()

	ch := NewPlatformChannel(srv.URL, "", time.Second, logger.NewNoOpLogger())
	_, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv")
	assert.ErrorIs(t, err, submitter.ErrRejected)
}

func TestPlatformChannel5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewPlatformChannel(srv.URL, "", time.Second, logger.NewNoOpLogger())
	_, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, submitter.ErrRejected, "5xx must stay retryable")
}

func TestPlatformChannelTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ch := NewPlatformChannel(srv.URL, "", 20*time.Millisecond, logger.NewNoOpLogger())
	_, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, submitter.ErrRejected)
}

type fakeEmailer struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmailer) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{}, nil
}

func TestEmailChannelSendsApplication(t *testing.T) {
	emailer := &fakeEmailer{}
	ch := NewEmailChannel(emailer, "apply@autoapply.example.com", logger.NewNoOpLogger())

	result, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv text")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.ExternalRef)

	require.Len(t, emailer.inputs, 1)
	sent := emailer.inputs[0]
	assert.Equal(t, []string{"jobs@acme.example.com"}, sent.Destination.ToAddresses)
	assert.Contains(t, *sent.Message.Subject.Data, "Backend Engineer")
}

func TestEmailChannelMissingAddressIsRejection(t *testing.T) {
	ch := NewEmailChannel(&fakeEmailer{}, "apply@autoapply.example.com", logger.NewNoOpLogger())

	candidate := sampleCandidate()
	candidate.ApplyEmail = ""
	_, err := ch.Submit(context.Background(), "user-1", candidate, "cv")
	assert.ErrorIs(t, err, submitter.ErrRejected)
}

func TestEmailChannelSESErrorIsTransient(t *testing.T) {
	ch := NewEmailChannel(&fakeEmailer{err: errors.New("throttled")}, "apply@autoapply.example.com", logger.NewNoOpLogger())

	_, err := ch.Submit(context.Background(), "user-1", sampleCandidate(), "cv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, submitter.ErrRejected)
}
