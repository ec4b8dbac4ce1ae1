package scorer

// Config holds the scoring weights and thresholds. The point budget is
// additive and capped at 100.
type Config struct {
	// Attribute weights.
	SpeciesPoints int `yaml:"species_points" mapstructure:"species_points"`
	BreedPoints   int `yaml:"breed_points" mapstructure:"breed_points"`

	// Visual similarity tiers.
	VisualHighPoints    int     `yaml:"visual_high_points" mapstructure:"visual_high_points"`
	VisualMediumPoints  int     `yaml:"visual_medium_points" mapstructure:"visual_medium_points"`
	VisualHighCutoff    float64 `yaml:"visual_high_cutoff" mapstructure:"visual_high_cutoff"`
	VisualMediumCutoff  float64 `yaml:"visual_medium_cutoff" mapstructure:"visual_medium_cutoff"`

	// Proximity flags for the user-facing explanation. Neither adds points.
	RadiusKm   float64 `yaml:"radius_km" mapstructure:"radius_km"`
	WindowDays int     `yaml:"window_days" mapstructure:"window_days"`

	// Confidence tier cutoffs: high at HighCutoff and above, medium at
	// MediumCutoff and above, low below.
	HighCutoff   int `yaml:"high_cutoff" mapstructure:"high_cutoff"`
	MediumCutoff int `yaml:"medium_cutoff" mapstructure:"medium_cutoff"`
}

// DefaultConfig returns the standard scoring policy.
func DefaultConfig() Config {
	return Config{
		SpeciesPoints:      30,
		BreedPoints:        20,
		VisualHighPoints:   40,
		VisualMediumPoints: 20,
		VisualHighCutoff:   0.95,
		VisualMediumCutoff: 0.88,
		RadiusKm:           10,
		WindowDays:         14,
		HighCutoff:         70,
		MediumCutoff:       30,
	}
}
