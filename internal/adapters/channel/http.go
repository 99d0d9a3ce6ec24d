// internal/adapters/channel/http.go

// Package channel holds the outbound submission adapters. Both implement
// submitter.Channel; the active one is picked by submission.mode.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	httpclient "autoapply-engine/internal/common/http"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/engine/submitter"
	"autoapply-engine/internal/models"
)

// PlatformChannel submits applications through the job platform's HTTP
// API. 4xx responses are logical rejections and never retried; 5xx and
// transport errors are transient.
type PlatformChannel struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  logger.Logger
}

func NewPlatformChannel(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *PlatformChannel {
	return &PlatformChannel{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "platform_channel"}),
	}
}

type platformRequest struct {
	UserID     string `json:"userId"`
	JobID      string `json:"jobId"`
	JobURL     string `json:"jobUrl"`
	CVDocument string `json:"cvDocument"`
}

type platformResponse struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

func (c *PlatformChannel) Submit(ctx context.Context, userID string, candidate models.JobCandidate, cvDocument string) (submitter.SubmitResult, error) {
	payload, err := json.Marshal(platformRequest{
		UserID:     userID,
		JobID:      candidate.SourceID,
		JobURL:     candidate.URL,
		CVDocument: cvDocument,
	})
	if err != nil {
		return submitter.SubmitResult{}, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/applications", bytes.NewReader(payload))
	if err != nil {
		return submitter.SubmitResult{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return submitter.SubmitResult{}, fmt.Errorf("submission channel unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out platformResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return submitter.SubmitResult{}, fmt.Errorf("decode submission response: %w", err)
		}
		return submitter.SubmitResult{Accepted: true, ExternalRef: out.ApplicationID}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("platform rejected submission", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
			"jobId":  candidate.SourceID,
		})
		return submitter.SubmitResult{}, fmt.Errorf("%w: platform returned %d", submitter.ErrRejected, resp.StatusCode)
	default:
		return submitter.SubmitResult{}, fmt.Errorf("platform returned %d", resp.StatusCode)
	}
}
