// internal/adapters/jobsource/elasticsearch_test.go
package jobsource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-engine/internal/common/database"
	"autoapply-engine/internal/common/logger"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) (*ElasticsearchSource, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElasticsearchSource(&database.ElasticsearchClient{Client: es}, "job_postings", logger.NewNoOpLogger()), srv
}

func TestListCandidatesParsesHits(t *testing.T) {
	source, srv := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "job_postings")

		body, _ := io.ReadAll(r.Body)
		var query map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &query))
		assert.Equal(t, float64(20), query["size"])

		w.Write([]byte(`{
			"hits": {"hits": [
				{"_id": "j1", "_source": {
					"title": "Backend Engineer", "company": "Acme",
					"location": "Berlin", "description": "Go services",
					"language": "en", "url": "https://jobs.example.com/j1"
				}},
				{"_id": "j2", "_source": {
					"title": "SRE", "company": "Globex",
					"location": "Remote", "description": "Infra",
					"language": "en", "url": "https://jobs.example.com/j2"
				}}
			]}
		}`))
	})
	defer srv.Close()

	candidates, err := source.ListCandidates(context.Background(), map[string]interface{}{
		"keywords": []string{"go", "backend"},
	}, 20)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "j1", candidates[0].SourceID)
	assert.Equal(t, "Acme", candidates[0].Company)
	assert.Equal(t, "en", candidates[1].DetectedLanguage)
}

func TestListCandidatesIndexError(t *testing.T) {
	source, srv := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "index_not_found_exception"}`))
	})
	defer srv.Close()

	_, err := source.ListCandidates(context.Background(), map[string]interface{}{}, 10)
	assert.Error(t, err)
}

func TestBuildQueryCriteriaMapping(t *testing.T) {
	query := buildQuery(map[string]interface{}{
		"keywords":   []interface{}{"go", "kubernetes"},
		"locations":  []interface{}{"Berlin", "Munich"},
		"remoteOnly": true,
		"minSalary":  float64(70000),
		"seniority":  "senior",
	}, 25)

	assert.Equal(t, 25, query["size"])

	boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]map[string]interface{})
	require.Len(t, must, 1)
	multiMatch := must[0]["multi_match"].(map[string]interface{})
	assert.Equal(t, "go kubernetes", multiMatch["query"])

	filter := boolQuery["filter"].([]map[string]interface{})
	assert.Len(t, filter, 4)
}

func TestBuildQueryEmptyCriteria(t *testing.T) {
	query := buildQuery(map[string]interface{}{}, 10)
	boolQuery := query["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Empty(t, boolQuery)
}
