// internal/adapters/oracle/client.go
package oracle

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
	"autoapply-engine/internal/engine/matcher"
)

// Client calls the external scoring oracle over HTTP. The oracle is a
// black box: the client validates nothing beyond transport and JSON
// shape, score-range checks live in the matcher.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "oracle"}),
	}
}

func (c *Client) Score(ctx context.Context, req matcher.ScoreRequest) (matcher.ScoreResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return matcher.ScoreResponse{}, fmt.Errorf("marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return matcher.ScoreResponse{}, fmt.Errorf("build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return matcher.ScoreResponse{}, fmt.Errorf("scoring oracle unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return matcher.ScoreResponse{}, fmt.Errorf("scoring oracle returned %d: %s", resp.StatusCode, string(payload))
	}

	var out matcher.ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return matcher.ScoreResponse{}, fmt.Errorf("decode score response: %w", err)
	}
	return out, nil
}
