// internal/models/run.go
package models

import "time"

// RunSummary reports the outcome of one automation run.
type RunSummary struct {
	UserID      string    `json:"userId"`
	Submitted   int       `json:"submitted"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NextResetAt time.Time `json:"nextResetAt"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}
