package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageStart EventType = "stage_start"
	EventStageEnd   EventType = "stage_end"
	EventIteration  EventType = "iteration"
	EventDecision   EventType = "decision"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StageEvent marks the start or end of a stage run.
type StageEvent struct {
	EventBase
	Stage     string        `json:"stage"`
	Iteration int           `json:"iteration"`
	Status    StageStatus   `json:"status,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// IterationEvent is emitted once per completed iteration.
type IterationEvent struct {
	EventBase
	Record IterationRecord `json:"record"`
}

// DecisionEvent carries the controller's verdict.
type DecisionEvent struct {
	EventBase
	Progress Progress `json:"progress"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageStart func(context.Context, *StageEvent)
	OnStageEnd   func(context.Context, *StageEvent)
	OnIteration  func(context.Context, *IterationEvent)
	OnDecision   func(context.Context, *DecisionEvent)
}
