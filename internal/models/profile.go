// internal/models/profile.go
package models

// UserProfile is the engine's read-only view of a user. Profile CRUD and
// CV extraction live outside the engine.
type UserProfile struct {
	UserID          string                 `json:"userId"`
	Email           string                 `json:"email"`
	Phone           string                 `json:"phone,omitempty"`
	CVText          string                 `json:"cvText"`
	CVAnalysis      map[string]interface{} `json:"cvAnalysis,omitempty"`
	Criteria        map[string]interface{} `json:"criteria"`
	SpokenLanguages []string               `json:"spokenLanguages"`
}

// MissingFields lists what a complete automated run requires but the
// profile lacks. Empty result means the profile is run-ready.
func (p UserProfile) MissingFields() []string {
	var missing []string
	if p.CVText == "" {
		missing = append(missing, "cv")
	}
	if len(p.Criteria) == 0 {
		missing = append(missing, "criteria")
	}
	if len(p.SpokenLanguages) == 0 {
		missing = append(missing, "spokenLanguages")
	}
	return missing
}
