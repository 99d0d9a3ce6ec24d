// internal/models/job.go
package models

// JobCandidate is one posting returned by the job source adapter.
// Immutable once fetched.
type JobCandidate struct {
	SourceID         string `json:"sourceId"`
	Title            string `json:"title"`
	Company          string `json:"company"`
	Location         string `json:"location"`
	Description      string `json:"description"`
	DetectedLanguage string `json:"detectedLanguage"`
	URL              string `json:"url"`
	ApplyEmail       string `json:"applyEmail,omitempty"`
}

// MatchResult pairs a candidate with its oracle score. Produced by the
// matcher, consumed for ranking within a single run, never persisted.
type MatchResult struct {
	Candidate     JobCandidate `json:"candidate"`
	Score         int          `json:"score"` // always clamped to [0,100]
	Strengths     []string     `json:"strengths,omitempty"`
	Weaknesses    []string     `json:"weaknesses,omitempty"`
	LowConfidence bool         `json:"lowConfidence,omitempty"`
}
