package domain

// Session state keys. The value type stored under each key is noted on the right.
const (
	KeyMaterial        = "material"         // string, caller input
	KeyRequirements    = "requirements"     // string, caller input
	KeyScoringCriteria = "scoring_criteria" // string, caller input

	KeyCurrentDraft  = "current_draft"  // string
	KeyPreviousDraft = "previous_draft" // string
	KeyDraftFailed   = "draft_failed"   // bool

	KeyCurrentScore    = "current_score"    // int, 0..MaxScore
	KeyCurrentFeedback = "current_feedback" // string
	KeyKeyIssues       = "key_issues"       // []string

	KeyScoreThreshold = "score_threshold" // int, 0..MaxScore
	KeyMaxIterations  = "max_iterations"  // int, >= 1
	KeyIterationCount = "iteration_count" // int, >= 0
	KeyIsComplete     = "is_complete"     // bool
)

// RequiredInputs lists the keys a session cannot start without.
var RequiredInputs = []string{KeyMaterial, KeyRequirements, KeyScoringCriteria}

const (
	// MaxScore is the top of the scoring scale. Scores are integers in [0, MaxScore].
	MaxScore = 100

	DefaultScoreThreshold = 60
	DefaultMaxIterations  = 5
)
