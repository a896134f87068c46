// Package model defines the core domain types shared across the scoring engine.
package model

import "time"

// PolicyType identifies the product category of a policy.
type PolicyType string

const (
	PolicyTypeLife       PolicyType = "life"
	PolicyTypeHealth     PolicyType = "health"
	PolicyTypeAuto       PolicyType = "auto"
	PolicyTypeHome       PolicyType = "home"
	PolicyTypeDisability PolicyType = "disability"
	PolicyTypeOther      PolicyType = "other"
)

// PolicyStatus represents the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "active"
	PolicyStatusCancelled PolicyStatus = "cancelled"
	PolicyStatusLapsed    PolicyStatus = "lapsed"
	PolicyStatusPending   PolicyStatus = "pending"
)

// PolicyRecord is a single insurance policy owned by a user. The scoring
// engine only reads policies; the CRM owns their lifecycle. Only active
// policies participate in scoring.
type PolicyRecord struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Type      PolicyType   `json:"type"`
	Provider  string       `json:"provider"`
	Premium   float64      `json:"premium"`  // monthly
	Coverage  float64      `json:"coverage"` // total coverage amount
	Status    PolicyStatus `json:"status"`
	StartDate time.Time    `json:"start_date"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
}

// UserProfile carries the per-user data needed for scoring. Age is never
// stored; it is derived from DateOfBirth at computation time so historical
// snapshots reflect the age at snapshot time.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

// AgeAt returns the whole-year age for a date of birth at the given instant.
func AgeAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	// Birthday not yet reached this year.
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// PerformanceSnapshot is one immutable, timestamped record of a user's
// computed score and the portfolio aggregates it was derived from.
// Snapshots are append-only; "previous" always means the most recent
// snapshot strictly before the current one.
type PerformanceSnapshot struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Score         int       `json:"score"` // composite, 0-100
	Rating        Rating    `json:"rating"`
	PremiumScore  float64   `json:"premium_score"`
	CoverageScore float64   `json:"coverage_score"`
	PolicyScore   float64   `json:"policy_score"`
	TotalPremium  float64   `json:"total_premium"`
	TotalCoverage float64   `json:"total_coverage"`
	PolicyCount   int       `json:"policy_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// BatchResult summarizes one batch scoring pass.
type BatchResult struct {
	UsersProcessed int `json:"users_processed"`
	AlertsCreated  int `json:"alerts_created"`
	UsersSkipped   int `json:"users_skipped"`
	UsersFailed    int `json:"users_failed"`
}
