// Package models holds the shared domain types of the automation engine.
//
// Valid application status graph:
//
//	selected ──► submitting ──► submitted
//	    │             │
//	    │             └───────► failed
//	    └─────────────────────► skipped
//
// submitted, failed and skipped are terminal states.
package models

import (
	"fmt"
	"time"
)

// ApplicationStatus values mirror the application_status enum in PostgreSQL.
type ApplicationStatus string

const (
	StatusSelected   ApplicationStatus = "selected"
	StatusSubmitting ApplicationStatus = "submitting"
	StatusSubmitted  ApplicationStatus = "submitted"
	StatusFailed     ApplicationStatus = "failed"
	StatusSkipped    ApplicationStatus = "skipped"
)

// validTransitions lists every allowed from/to pair.
var validTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusSelected:   {StatusSubmitting, StatusSkipped},
	StatusSubmitting: {StatusSubmitted, StatusFailed},
	// submitted, failed and skipped are terminal, no outgoing transitions
}

// ParseStatus converts a raw string to an ApplicationStatus, returning an
// error for unknown values.
func ParseStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case StatusSelected, StatusSubmitting, StatusSubmitted, StatusFailed, StatusSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTransitionAllowed returns true when moving from one status to another
// is permitted by the state machine.
func IsTransitionAllowed(from, to ApplicationStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true when no transition leaves the status.
func IsTerminal(s ApplicationStatus) bool {
	_, ok := validTransitions[s]
	return !ok
}

// ApplicationRecord is the append-only audit trail of one handled
// candidate and the deduplication anchor. Terminal-state records are
// immutable.
type ApplicationRecord struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	JobFingerprint string            `json:"jobFingerprint"`
	JobTitle       string            `json:"jobTitle"`
	Company        string            `json:"company"`
	Status         ApplicationStatus `json:"status"`
	MatchScore     int               `json:"matchScore"`
	AppliedAt      time.Time         `json:"appliedAt"`
	JobURL         string            `json:"jobUrl"`
	ExternalRef    string            `json:"externalRef,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
}
