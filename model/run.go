package model

import "time"

type RunStatus string

const RUN_STATUS_RUNNING RunStatus = "running"
const RUN_STATUS_COMPLETED RunStatus = "completed"
const RUN_STATUS_FAILED RunStatus = "failed"
const RUN_STATUS_CANCELLED RunStatus = "cancelled"

// FlowRun is one execution of a FlowDefinition for one session. The
// engine holds no state between steps; everything needed to resume a
// run lives here and in the context store.
type FlowRun struct {
	RunId        string          `json:"runId"`
	FlowId       string          `json:"flowId"`
	FlowVersion  int             `json:"flowVersion"`
	SessionId    string          `json:"sessionId"`
	CurrentState string          `json:"currentState"`
	Status       RunStatus       `json:"status"`
	Context      map[string]any  `json:"context"`
	Collected    map[string]bool `json:"collected"`
	Version      int64           `json:"version"`
	StartedAt    time.Time       `json:"startedAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	LastError    string          `json:"lastError,omitempty"`
}

func (r *FlowRun) Active() bool {
	return r.Status == RUN_STATUS_RUNNING
}

// InboundEvent is what the orchestrator feeds into a single engine
// step: either raw user text or a resume signal after an asynchronous
// action.
type InboundEvent struct {
	Text   string `json:"text"`
	Resume bool   `json:"resume"`
}

// StepResult is the outcome of exactly one engine step.
type StepResult struct {
	Event     string          `json:"event"`
	FromState string          `json:"fromState"`
	ToState   string          `json:"toState"`
	Completed bool            `json:"completed"`
	Fragments OutboundPayload `json:"fragments"`
}

// StepOutcome is the telemetry record emitted after every step.
type StepOutcome struct {
	RunId     string    `json:"runId"`
	FlowId    string    `json:"flowId"`
	SessionId string    `json:"sessionId"`
	FromState string    `json:"fromState"`
	ToState   string    `json:"toState"`
	Event     string    `json:"event"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}
