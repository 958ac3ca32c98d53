package domain

// Decision is the outcome of a progress check.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionDone     Decision = "done"
)

// Reason explains why a session reached DONE.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonScorePassed   Reason = "score_passed"
	ReasonMaxIterations Reason = "max_iterations"
	ReasonMissingData   Reason = "missing_data"
)

// Progress is what the controller returns after each scoring pass.
type Progress struct {
	Decision Decision `json:"decision"`
	Reason   Reason   `json:"reason,omitempty"`

	// Escalate is true exactly when Decision is DONE. It is the stop signal for the loop.
	Escalate bool `json:"escalate"`

	// Error reports an internal failure that was absorbed. It never changes Decision.
	Error string `json:"error,omitempty"`

	Score     *int `json:"score,omitempty"`
	Threshold int  `json:"threshold"`
	Iteration int  `json:"iteration"`
	Max       int  `json:"max_iterations"`
}

// Done reports whether the session should stop.
func (p Progress) Done() bool {
	return p.Decision == DecisionDone
}

// StageStatus is the coarse outcome of one stage run.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageError   StageStatus = "error"
)

// StageResult is returned by every stage. Failures are values, not errors.
type StageResult struct {
	Stage   string      `json:"stage"`
	Status  StageStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// OK reports whether the stage succeeded.
func (r StageResult) OK() bool {
	return r.Status == StageSuccess
}
