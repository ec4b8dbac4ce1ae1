package model

import "time"

// MatchLevel is the confidence tier derived from a match score.
//
// One consistent scheme applies everywhere: high for scores >= 70,
// medium for 30..69, low below 30.
type MatchLevel string

const (
	MatchLevelLow    MatchLevel = "low"
	MatchLevelMedium MatchLevel = "medium"
	MatchLevelHigh   MatchLevel = "high"
)

// AlertStatus is the review lifecycle state of a match alert.
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusDismissed AlertStatus = "dismissed"
	AlertStatusConfirmed AlertStatus = "confirmed"
)

// Terminal reports whether the status admits no further transitions.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusDismissed || s == AlertStatusConfirmed
}

// VisualTier classifies cosine similarity between two image vectors.
type VisualTier string

const (
	VisualTierNone   VisualTier = "none"
	VisualTierMedium VisualTier = "medium"
	VisualTierHigh   VisualTier = "high"
)

// MatchDetails records which sub-criteria contributed to a match score.
// It is written once at alert creation and never recomputed.
type MatchDetails struct {
	SpeciesMatch bool `json:"species_match"`
	BreedMatch   bool `json:"breed_match"`
	ColorMatch   bool `json:"color_match"`

	VisualTier       VisualTier `json:"visual_tier"`
	VisualSimilarity *float64   `json:"visual_similarity,omitempty"`

	LocationNearby bool     `json:"location_nearby"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`

	TimeframeNearby bool `json:"timeframe_nearby"`
	DaysDifference  *int `json:"days_difference,omitempty"`

	Verification *VerificationSummary `json:"verification,omitempty"`
}

// VerificationSummary is the outcome of the optional vision-verification
// pass for borderline candidates.
type VerificationSummary struct {
	Available   bool   `json:"available"`
	Probability int    `json:"probability,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// ScoreResult is the scoring engine's output for one lost/found pair.
type ScoreResult struct {
	Score   int          `json:"score"`
	Level   MatchLevel   `json:"level"`
	Details MatchDetails `json:"details"`
}

// MatchAlert is a persisted candidate pairing between a lost and a found
// report, surfaced to the lost report's owner. At most one alert exists
// per (LostReportID, FoundReportID) pair.
type MatchAlert struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	LostReportID  string       `json:"lost_report_id"`
	FoundReportID string       `json:"found_report_id"`
	MatchScore    int          `json:"match_score"`
	MatchLevel    MatchLevel   `json:"match_level"`
	MatchDetails  MatchDetails `json:"match_details"`
	Status        AlertStatus  `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
