package domain

// ResultStatus is the externally reported outcome of a session.
type ResultStatus string

const (
	ResultSuccess     ResultStatus = "success"
	ResultError       ResultStatus = "error"
	ResultMissingData ResultStatus = "missing_data"
)

// Result is the final, aggregated outcome of a refinement session.
type Result struct {
	SessionID           string       `json:"session_id,omitempty"`
	Status              ResultStatus `json:"status"`
	Message             string       `json:"message,omitempty"`
	Draft               string       `json:"final_draft_text"`
	Score               int          `json:"final_score"`
	Feedback            string       `json:"final_feedback"`
	KeyIssues           []string     `json:"key_issues"`
	IterationsCompleted int          `json:"iterations_completed"`
	Complete            bool         `json:"is_complete"`

	// Degraded is set when the final draft is a generation failure marker.
	Degraded bool `json:"degraded,omitempty"`

	MissingKeys []string `json:"missing_keys,omitempty"`
}
