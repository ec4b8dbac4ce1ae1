// Package scorer combines attribute equality, visual similarity, geographic
// proximity, and temporal proximity into a single 0-100 match score with a
// confidence tier.
package scorer

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/reunite-labs/petmatch/internal/model"
	"github.com/reunite-labs/petmatch/internal/similarity"
)

// Engine scores lost/found report pairs. It is stateless and safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine. Zero-valued cutoffs fall back to the
// defaults so a partially filled Config stays usable.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SpeciesPoints <= 0 {
		cfg.SpeciesPoints = def.SpeciesPoints
	}
	if cfg.BreedPoints <= 0 {
		cfg.BreedPoints = def.BreedPoints
	}
	if cfg.VisualHighPoints <= 0 {
		cfg.VisualHighPoints = def.VisualHighPoints
	}
	if cfg.VisualMediumPoints <= 0 {
		cfg.VisualMediumPoints = def.VisualMediumPoints
	}
	if cfg.VisualHighCutoff <= 0 {
		cfg.VisualHighCutoff = def.VisualHighCutoff
	}
	if cfg.VisualMediumCutoff <= 0 {
		cfg.VisualMediumCutoff = def.VisualMediumCutoff
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = def.RadiusKm
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.HighCutoff <= 0 {
		cfg.HighCutoff = def.HighCutoff
	}
	if cfg.MediumCutoff <= 0 {
		cfg.MediumCutoff = def.MediumCutoff
	}
	return &Engine{cfg: cfg}
}

// Score evaluates a found report as a candidate for a lost report.
func (e *Engine) Score(lost, found model.Report) model.ScoreResult {
	var details model.MatchDetails
	score := 0

	if attrEqual(lost.Species, found.Species) {
		score += e.cfg.SpeciesPoints
		details.SpeciesMatch = true
	}
	if attrEqual(lost.Breed, found.Breed) {
		score += e.cfg.BreedPoints
		details.BreedMatch = true
	}
	details.ColorMatch = attrEqual(lost.Color, found.Color)

	details.VisualTier = model.VisualTierNone
	if len(lost.ImageVector) > 0 && len(found.ImageVector) > 0 {
		sim := similarity.Cosine(lost.ImageVector, found.ImageVector)
		details.VisualSimilarity = &sim
		switch {
		case sim > e.cfg.VisualHighCutoff:
			score += e.cfg.VisualHighPoints
			details.VisualTier = model.VisualTierHigh
		case sim > e.cfg.VisualMediumCutoff:
			score += e.cfg.VisualMediumPoints
			details.VisualTier = model.VisualTierMedium
		}
	}

	if lost.HasCoordinates() && found.HasCoordinates() {
		dist := similarity.HaversineKm(*lost.Latitude, *lost.Longitude, *found.Latitude, *found.Longitude)
		details.DistanceKm = &dist
		details.LocationNearby = dist <= e.cfg.RadiusKm
	}

	if lost.OccurredAt != nil && found.OccurredAt != nil {
		days := similarity.DaysBetween(*lost.OccurredAt, *found.OccurredAt)
		details.DaysDifference = &days
		details.TimeframeNearby = days <= e.cfg.WindowDays
	}

	if score > 100 {
		score = 100
	}

	return model.ScoreResult{
		Score:   score,
		Level:   e.Level(score),
		Details: details,
	}
}

// Level maps a score to its confidence tier.
func (e *Engine) Level(score int) model.MatchLevel {
	switch {
	case score >= e.cfg.HighCutoff:
		return model.MatchLevelHigh
	case score >= e.cfg.MediumCutoff:
		return model.MatchLevelMedium
	default:
		return model.MatchLevelLow
	}
}

// Borderline reports whether a score sits just below the high tier, close
// enough to warrant the optional vision-verification pass.
func (e *Engine) Borderline(score, margin int) bool {
	return score < e.cfg.HighCutoff && score >= e.cfg.HighCutoff-margin
}

// Candidate pairs a found report with its score against a lost report.
type Candidate struct {
	Report model.Report
	Result model.ScoreResult
}

// SortCandidates orders candidates by score descending. Equal scores order
// by the found report's CreatedAt, most recent first, then by report ID so
// the ordering is fully deterministic.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Result.Score != cands[j].Result.Score {
			return cands[i].Result.Score > cands[j].Result.Score
		}
		if !cands[i].Report.CreatedAt.Equal(cands[j].Report.CreatedAt) {
			return cands[i].Report.CreatedAt.After(cands[j].Report.CreatedAt)
		}
		return cands[i].Report.ID < cands[j].Report.ID
	})
}

// attrEqual compares two descriptive attributes with Unicode case folding.
// Empty values never match: a blank field carries no signal.
func attrEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
