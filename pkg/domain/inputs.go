package domain

// Inputs seeds a new session. Nil pointers leave the engine defaults in place.
type Inputs struct {
	Material        string `json:"material" yaml:"material" mapstructure:"material"`
	Requirements    string `json:"requirements" yaml:"requirements" mapstructure:"requirements"`
	ScoringCriteria string `json:"scoring_criteria" yaml:"scoring_criteria" mapstructure:"scoring_criteria"`

	ScoreThreshold *int `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty" mapstructure:"score_threshold"`
	MaxIterations  *int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" mapstructure:"max_iterations"`

	// Extra carries additional keys, validated against the session schema.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

// Values flattens the inputs into session keys.
func (in Inputs) Values() map[string]any {
	values := make(map[string]any, len(in.Extra)+5)
	for k, v := range in.Extra {
		values[k] = v
	}
	values[KeyMaterial] = in.Material
	values[KeyRequirements] = in.Requirements
	values[KeyScoringCriteria] = in.ScoringCriteria
	if in.ScoreThreshold != nil {
		values[KeyScoreThreshold] = *in.ScoreThreshold
	}
	if in.MaxIterations != nil {
		values[KeyMaxIterations] = *in.MaxIterations
	}
	return values
}
