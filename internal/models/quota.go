// internal/models/quota.go
package models

import "time"

// Tier is the subscription level determining quota limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
	TierPremium Tier = "premium"
)

// WindowKind is the rolling period over which a quota limit applies.
type WindowKind string

const (
	WindowDaily   WindowKind = "daily"
	WindowWeekly  WindowKind = "weekly"
	WindowMonthly WindowKind = "monthly"
)

// UserQuotaState is the persisted per-user quota row. It is owned
// exclusively by the quota tracker and mutated only through its atomic
// consume operation.
type UserQuotaState struct {
	UserID         string     `json:"userId"`
	Tier           Tier       `json:"tier"`
	LimitPerWindow int        `json:"limitPerWindow"`
	WindowKind     WindowKind `json:"windowKind"`
	UsedInWindow   int        `json:"usedInWindow"`
	WindowStart    time.Time  `json:"windowStart"`
}

// Remaining returns the unused portion of the current window.
func (s UserQuotaState) Remaining() int {
	r := s.LimitPerWindow - s.UsedInWindow
	if r < 0 {
		return 0
	}
	return r
}

// QuotaStatus is the user-facing view served by GET /subscription/user.
type QuotaStatus struct {
	Tier      Tier      `json:"tier"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}
