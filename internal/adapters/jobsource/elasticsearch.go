// internal/adapters/jobsource/elasticsearch.go

// Package jobsource reads crawled job postings from the search index.
// The crawler pipeline that fills the index is a separate system; this
// adapter only queries it.
package jobsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autoapply-engine/internal/common/database"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/models"
)

const defaultIndex = "job_postings"

// Source lists candidate postings matching a user's search criteria.
type Source interface {
	ListCandidates(ctx context.Context, criteria map[string]interface{}, limit int) ([]models.JobCandidate, error)
}

// ElasticsearchSource implements Source against the job_postings index.
type ElasticsearchSource struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewElasticsearchSource(es *database.ElasticsearchClient, index string, log logger.Logger) *ElasticsearchSource {
	if index == "" {
		index = defaultIndex
	}
	return &ElasticsearchSource{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "jobsource"}),
	}
}

type searchHit struct {
	ID     string `json:"_id"`
	Source struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"location"`
		Description string `json:"description"`
		Language    string `json:"language"`
		URL         string `json:"url"`
		ApplyEmail  string `json:"apply_email"`
	} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSource) ListCandidates(ctx context.Context, criteria map[string]interface{}, limit int) ([]models.JobCandidate, error) {
	if limit <= 0 {
		limit = 50
	}

	query := buildQuery(criteria, limit)
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := s.es.Client.Search(
		s.es.Client.Search.WithContext(ctx),
		s.es.Client.Search.WithIndex(s.index),
		s.es.Client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("job index search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("job index search error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]models.JobCandidate, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		candidates = append(candidates, models.JobCandidate{
			SourceID:         hit.ID,
			Title:            hit.Source.Title,
			Company:          hit.Source.Company,
			Location:         hit.Source.Location,
			Description:      hit.Source.Description,
			DetectedLanguage: hit.Source.Language,
			URL:              hit.Source.URL,
			ApplyEmail:       hit.Source.ApplyEmail,
		})
	}

	s.logger.Debug("job index query returned", map[string]interface{}{
		"count": len(candidates),
		"limit": limit,
	})
	return candidates, nil
}

// buildQuery translates the user's criteria document to an Elasticsearch
// bool query. Keywords are required, the rest narrows the result.
func buildQuery(criteria map[string]interface{}, limit int) map[string]interface{} {
	var must []map[string]interface{}
	var filter []map[string]interface{}

	if keywords := stringSlice(criteria["keywords"]); len(keywords) > 0 {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  joinWords(keywords),
				"fields": []string{"title^2", "description"},
			},
		})
	}
	if locations := stringSlice(criteria["locations"]); len(locations) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"location.keyword": locations},
		})
	}
	if remote, ok := criteria["remoteOnly"].(bool); ok && remote {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"remote": true},
		})
	}
	if minSalary, ok := numeric(criteria["minSalary"]); ok {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"salary_max": map[string]interface{}{"gte": minSalary},
			},
		})
	}
	if seniority, ok := criteria["seniority"].(string); ok && seniority != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"seniority": seniority},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []map[string]interface{}{{"posted_at": map[string]interface{}{"order": "desc"}}},
	}
}

// stringSlice accepts both []string and the []interface{} shape JSON
// decoding produces.
func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func joinWords(words []string) string {
	return strings.Join(words, " ")
}
