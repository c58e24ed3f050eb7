package models

import "time"

// TraceStep records one Thought/Action/Observation triple of a reasoning run.
// Thought holds the model's raw step text; Action the parsed tool call (empty
// when the step carried no action); Observation the tool result fed back.
type TraceStep struct {
	Thought     string    `json:"thought"`
	Action      string    `json:"action,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReasoningTrace is the ordered log of one reasoning loop execution.
// It is appended to while the run is in progress and immutable once a
// final answer or failure is recorded. Used for observability only.
type ReasoningTrace struct {
	TraceID     string      `json:"trace_id"`
	Query       string      `json:"query"`
	Steps       []TraceStep `json:"steps"`
	FinalAnswer string      `json:"final_answer,omitempty"`
	Failure     string      `json:"failure,omitempty"`
	Turns       int         `json:"turns"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

// AddStep appends one step to the trace.
func (t *ReasoningTrace) AddStep(step TraceStep) {
	t.Steps = append(t.Steps, step)
}
