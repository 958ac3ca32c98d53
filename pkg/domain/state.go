package domain

import "time"

// SessionStatus describes where a refinement session is in its lifecycle.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"   // Seeded, loop not started
	StatusRunning   SessionStatus = "running"   // Loop in progress
	StatusCompleted SessionStatus = "completed" // Loop terminated (threshold or cap)
	StatusAborted   SessionStatus = "aborted"   // Host cancelled the loop
)

// State is the mutable Session State shared by every stage of one refinement session.
type State struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`

	// Values holds the session keys (see the Key* constants).
	Values map[string]any `json:"values"`

	// Revisions records, per key, the logical clock tick of its latest accepted write.
	// It orders writes within a session (draft before score) and lets readers
	// detect values that were superseded.
	Revisions map[string]uint64 `json:"revisions"`

	// Clock is the last tick handed out to a write.
	Clock uint64 `json:"clock"`

	// History is the per-iteration audit trail.
	History []IterationRecord `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IterationRecord summarises one Draft -> Scoring -> Check pass.
type IterationRecord struct {
	Iteration   int       `json:"iteration"`
	Score       int       `json:"score"`
	Decision    Decision  `json:"decision"`
	Reason      Reason    `json:"reason,omitempty"`
	DraftFailed bool      `json:"draft_failed,omitempty"`
	DraftLength int       `json:"draft_length"`
	KeyIssues   []string  `json:"key_issues,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewState creates an empty session state.
func NewState(sessionID string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		Status:    StatusPending,
		Values:    make(map[string]any),
		Revisions: make(map[string]uint64),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a copy of the state. Maps and the history slice are copied;
// values stored in the maps are shared.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Values = make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		if issues, ok := v.([]string); ok {
			v = append([]string(nil), issues...)
		}
		out.Values[k] = v
	}
	out.Revisions = make(map[string]uint64, len(s.Revisions))
	for k, v := range s.Revisions {
		out.Revisions[k] = v
	}
	if s.History != nil {
		out.History = append([]IterationRecord(nil), s.History...)
	}
	return &out
}
