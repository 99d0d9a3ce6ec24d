// internal/engine/matcher/matcher_test.go
package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-engine/internal/common/breaker"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeOracle maps job descriptions to canned responses.
type fakeOracle struct {
	responses map[string]ScoreResponse
	errs      map[string]error
	calls     int
}

func (f *fakeOracle) Score(_ context.Context, req ScoreRequest) (ScoreResponse, error) {
	f.calls++
	if err, ok := f.errs[req.JobDescription]; ok {
		return ScoreResponse{}, err
	}
	return f.responses[req.JobDescription], nil
}

func newTestMatcher(t *testing.T, oracle Oracle) *Matcher {
	return New(oracle, breaker.New(5), logger.NewTestLogger(t))
}

func profile(langs ...string) models.UserProfile {
	return models.UserProfile{
		UserID:          "user-1",
		CVText:          "cv text",
		Criteria:        map[string]interface{}{"keywords": []string{"go"}},
		SpokenLanguages: langs,
	}
}

func jc(title, desc, lang string) models.JobCandidate {
	return models.JobCandidate{Title: title, Company: "Acme", Location: "Berlin", Description: desc, DetectedLanguage: lang}
}

// ==========================
// Language filter
// ==========================

func TestRank_UnmatchedLanguageIsHardFiltered(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{
		"en job": {Score: 80},
		"de job": {Score: 95},
	}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"),
		[]models.JobCandidate{jc("A", "en job", "English"), jc("B", "de job", "German")})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Candidate.Title)
	// The filtered candidate is never sent to the oracle.
	assert.Equal(t, 1, oracle.calls)
}

func TestRank_LanguageMatchIsCaseInsensitive(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{"x": {Score: 50}}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("english"),
		[]models.JobCandidate{jc("A", "x", "English")})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// ==========================
// Scoring and ordering
// ==========================

func TestRank_SortsByScoreDescending(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{
		"low": {Score: 20}, "high": {Score: 90}, "mid": {Score: 55},
	}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"), []models.JobCandidate{
		jc("Low", "low", "English"), jc("High", "high", "English"), jc("Mid", "mid", "English"),
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []int{90, 55, 20}, []int{results[0].Score, results[1].Score, results[2].Score})
}

func TestRank_TieBreakPrefersFirstSpokenLanguage(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{
		"a": {Score: 70}, "b": {Score: 70},
	}}
	m := newTestMatcher(t, oracle)

	// User speaks German first; the German posting wins the tie even
	// though it arrived second.
	results, err := m.Rank(context.Background(), profile("German", "English"), []models.JobCandidate{
		jc("EnglishJob", "a", "English"), jc("GermanJob", "b", "German"),
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "GermanJob", results[0].Candidate.Title)
}

func TestRank_TieBreakFallsBackToOriginalOrder(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{
		"a": {Score: 70}, "b": {Score: 70}, "c": {Score: 70},
	}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"), []models.JobCandidate{
		jc("First", "a", "English"), jc("Second", "b", "English"), jc("Third", "c", "English"),
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "First", results[0].Candidate.Title)
	assert.Equal(t, "Second", results[1].Candidate.Title)
	assert.Equal(t, "Third", results[2].Candidate.Title)
}

func TestRank_ScoresAlwaysWithinRange(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{
		"ok":   {Score: 42},
		"huge": {Score: 400},
		"neg":  {Score: -3},
	}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"), []models.JobCandidate{
		jc("A", "ok", "English"), jc("B", "huge", "English"), jc("C", "neg", "English"),
	})
	require.NoError(t, err)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0)
		assert.LessOrEqual(t, r.Score, 100)
	}
}

// ==========================
// Oracle degradation
// ==========================

func TestRank_OracleFailureScoresZeroLowConfidence(t *testing.T) {
	oracle := &fakeOracle{
		responses: map[string]ScoreResponse{"good": {Score: 80, Strengths: []string{"go"}}},
		errs:      map[string]error{"bad": errors.New("oracle timeout")},
	}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"), []models.JobCandidate{
		jc("Bad", "bad", "English"), jc("Good", "good", "English"),
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Good", results[0].Candidate.Title)
	assert.Equal(t, 80, results[0].Score)
	assert.False(t, results[0].LowConfidence)

	assert.Equal(t, "Bad", results[1].Candidate.Title)
	assert.Equal(t, 0, results[1].Score)
	assert.True(t, results[1].LowConfidence)
}

func TestRank_OutOfRangeScoreIsLowConfidence(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{"odd": {Score: 250}}}
	m := newTestMatcher(t, oracle)

	results, err := m.Rank(context.Background(), profile("English"),
		[]models.JobCandidate{jc("A", "odd", "English")})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Score)
	assert.True(t, results[0].LowConfidence)
}

func TestRank_BreakerOpenSkipsOracleCalls(t *testing.T) {
	oracleErr := errors.New("connection refused")
	oracle := &fakeOracle{errs: map[string]error{
		"a": oracleErr, "b": oracleErr, "c": oracleErr, "d": oracleErr,
	}}
	m := New(oracle, breaker.New(2), logger.NewTestLogger(t))

	results, err := m.Rank(context.Background(), profile("English"), []models.JobCandidate{
		jc("A", "a", "English"), jc("B", "b", "English"),
		jc("C", "c", "English"), jc("D", "d", "English"),
	})
	require.NoError(t, err)

	// After two consecutive failures the breaker opens; the remaining
	// candidates degrade without further external calls.
	assert.Equal(t, 2, oracle.calls)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.LowConfidence)
	}
}

func TestRank_BreakerRecoversAfterCooldown(t *testing.T) {
	oracleErr := errors.New("connection refused")
	oracle := &fakeOracle{errs: map[string]error{
		"a": oracleErr, "b": oracleErr, "c": oracleErr,
	}}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	brk := breaker.New(3).WithCooldown(time.Minute).WithClock(func() time.Time { return now })
	m := New(oracle, brk, logger.NewTestLogger(t))

	batch := []models.JobCandidate{
		jc("A", "a", "English"), jc("B", "b", "English"), jc("C", "c", "English"),
	}
	_, err := m.Rank(context.Background(), profile("English"), batch)
	require.NoError(t, err)
	require.Equal(t, 3, oracle.calls)
	require.True(t, brk.Open())

	// The oracle comes back, but the cooldown has not elapsed yet: no
	// further calls are made.
	oracle.errs = nil
	oracle.responses = map[string]ScoreResponse{"a": {Score: 60}, "b": {Score: 70}, "c": {Score: 80}}

	_, err = m.Rank(context.Background(), profile("English"), batch)
	require.NoError(t, err)
	assert.Equal(t, 3, oracle.calls, "open breaker still gates calls inside the cooldown")

	// Past the cooldown the half-open trial succeeds and closes the
	// breaker, so the whole batch is scored again.
	now = now.Add(time.Minute)
	results, err := m.Rank(context.Background(), profile("English"), batch)
	require.NoError(t, err)

	assert.Equal(t, 6, oracle.calls)
	assert.False(t, brk.Open())
	require.Len(t, results, 3)
	assert.Equal(t, 80, results[0].Score)
	assert.False(t, results[0].LowConfidence)
}

func TestRank_CancelledContextStopsRanking(t *testing.T) {
	oracle := &fakeOracle{responses: map[string]ScoreResponse{"x": {Score: 10}}}
	m := newTestMatcher(t, oracle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Rank(ctx, profile("English"), []models.JobCandidate{jc("A", "x", "English")})
	assert.ErrorIs(t, err, context.Canceled)
}
