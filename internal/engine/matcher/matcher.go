// internal/engine/matcher/matcher.go
package matcher

import (
	"context"
	"sort"

	"autoapply-engine/internal/common/breaker"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/common/metrics"
	"autoapply-engine/internal/models"
)

// ScoreRequest is what the external scoring oracle consumes for one
// candidate.
type ScoreRequest struct {
	Criteria       map[string]interface{} `json:"criteria"`
	CVAnalysis     map[string]interface{} `json:"cvAnalysis"`
	JobDescription string                 `json:"jobDescription"`
}

// ScoreResponse is the oracle's verdict. Score is validated and clamped
// by the matcher, never trusted as-is.
type ScoreResponse struct {
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Oracle is the external scoring service consumed as a black box.
type Oracle interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResponse, error)
}

// Matcher filters and ranks candidates for one user. Scoring is
// delegated to the oracle; the matcher owns eligibility and ordering.
type Matcher struct {
	oracle  Oracle
	breaker *breaker.Breaker
	logger  logger.Logger
}

func New(oracle Oracle, brk *breaker.Breaker, log logger.Logger) *Matcher {
	return &Matcher{
		oracle:  oracle,
		breaker: brk,
		logger:  log.WithFields(map[string]interface{}{"component": "matcher"}),
	}
}

// Rank scores the eligible candidates and returns them sorted by score
// descending. Candidates whose detected language is not among the user's
// spoken languages are excluded before scoring entirely, not merely
// penalized. Oracle failures degrade a candidate to score 0 with the
// low-confidence flag instead of discarding it, so the run can still
// make progress under partial oracle degradation.
func (m *Matcher) Rank(ctx context.Context, profile models.UserProfile, candidates []models.JobCandidate) ([]models.MatchResult, error) {
	eligible := filterByLanguage(profile.SpokenLanguages, candidates)

	results := make([]models.MatchResult, 0, len(eligible))
	for _, c := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := models.MatchResult{Candidate: c}
		if m.breaker.Allow() {
			resp, err := m.oracle.Score(ctx, ScoreRequest{
				Criteria:       profile.Criteria,
				CVAnalysis:     profile.CVAnalysis,
				JobDescription: c.Description,
			})
			switch {
			case err != nil:
				m.breaker.Failure()
				metrics.OracleFailures.Inc()
				m.logger.Warn("oracle call failed, scoring candidate zero", map[string]interface{}{
					"userId":  profile.UserID,
					"company": c.Company,
					"title":   c.Title,
					"error":   err.Error(),
				})
				result.LowConfidence = true
			case resp.Score < 0 || resp.Score > 100:
				m.breaker.Success()
				metrics.OracleFailures.Inc()
				m.logger.Warn("oracle returned out-of-range score", map[string]interface{}{
					"userId": profile.UserID,
					"score":  resp.Score,
				})
				result.LowConfidence = true
			default:
				m.breaker.Success()
				result.Score = clamp(int(resp.Score))
				result.Strengths = resp.Strengths
				result.Weaknesses = resp.Weaknesses
			}
		} else {
			// Breaker open: stop burning calls against a downed oracle.
			result.LowConfidence = true
		}

		results = append(results, result)
	}

	sortResults(results, firstLanguage(profile.SpokenLanguages))
	return results, nil
}

func filterByLanguage(spoken []string, candidates []models.JobCandidate) []models.JobCandidate {
	spokenSet := make(map[string]bool, len(spoken))
	for _, l := range spoken {
		spokenSet[normalizeLang(l)] = true
	}

	eligible := make([]models.JobCandidate, 0, len(candidates))
	for _, c := range candidates {
		if spokenSet[normalizeLang(c.DetectedLanguage)] {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// sortResults orders by score descending; ties prefer candidates whose
// detected language matches the user's first-listed spoken language, then
// keep the original candidate order (stable sort).
func sortResults(results []models.MatchResult, preferredLang string) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		iPref := normalizeLang(results[i].Candidate.DetectedLanguage) == preferredLang
		jPref := normalizeLang(results[j].Candidate.DetectedLanguage) == preferredLang
		if iPref != jPref {
			return iPref
		}
		return false
	})
}

func firstLanguage(spoken []string) string {
	if len(spoken) == 0 {
		return ""
	}
	return normalizeLang(spoken[0])
}

func normalizeLang(l string) string {
	out := make([]rune, 0, len(l))
	for _, r := range l {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r != ' ' {
			out = append(out, r)
		}
	}
	return string(out)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
