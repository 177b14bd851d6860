package models

import "time"

// Rule represents an automation rule owned by the editor
type Rule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	IsEnabled        bool              `json:"is_enabled"`
	ExitActionKind   ActionKind        `json:"exit_action_kind,omitempty"`
	ExitActionParams map[string]string `json:"exit_action_params,omitempty"`
	ExecutionCount   int64             `json:"execution_count"`
	LastExecutedAt   *time.Time        `json:"last_executed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasExitAction reports whether the rule configures an action for the window-close edge
func (r Rule) HasExitAction() bool {
	return r.ExitActionKind != ""
}

// Trigger is an event kind plus parameters that can start rule evaluation.
// Params holds the typed schema parsed from Parameters when the trigger was loaded;
// ParamsErr is set instead when the blob did not parse.
type Trigger struct {
	ID              string            `json:"id"`
	RuleID          string            `json:"rule_id"`
	Kind            TriggerKind       `json:"kind"`
	Parameters      map[string]string `json:"parameters"`
	IsActive        bool              `json:"is_active"`
	LogicalOperator string            `json:"logical_operator"`

	Params    any   `json:"-"`
	ParamsErr error `json:"-"`
}

// Condition is a state check that must hold for a matched rule to execute
type Condition struct {
	ID         string            `json:"id"`
	RuleID     string            `json:"rule_id"`
	Kind       ConditionKind     `json:"kind"`
	Parameters map[string]string `json:"parameters"`
	IsActive   bool              `json:"is_active"`

	Params    any   `json:"-"`
	ParamsErr error `json:"-"`
}

// Action is one effect performed as part of a rule execution
type Action struct {
	ID         string            `json:"id"`
	RuleID     string            `json:"rule_id"`
	Kind       ActionKind        `json:"kind"`
	Parameters map[string]string `json:"parameters"`
	Sequence   int               `json:"sequence"`
	IsEnabled  bool              `json:"is_enabled"`

	Params    any   `json:"-"`
	ParamsErr error `json:"-"`
}

// Event is produced by an event source and consumed once by the engine
type Event struct {
	Kind      TriggerKind       `json:"kind"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

// Meta returns a metadata value or the empty string
func (e Event) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// ResultStatus distinguishes the three outcomes of an execution
type ResultStatus string

const (
	StatusExecuted         ResultStatus = "executed"
	StatusConditionsNotMet ResultStatus = "conditions_not_met"
	StatusFailed           ResultStatus = "failed"
)

// ExecutionResult is returned per orchestrator invocation and never persisted
type ExecutionResult struct {
	ExecutionID     string       `json:"execution_id"`
	RuleID          string       `json:"rule_id"`
	TriggeredBy     string       `json:"triggered_by"`
	Executed        bool         `json:"executed"`
	Status          ResultStatus `json:"status"`
	Reason          string       `json:"reason,omitempty"`
	ActionsExecuted int          `json:"actions_executed"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// Location is a WGS84 fix
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Time      time.Time `json:"time"`
}

// Command is an effect sent to the host device
type Command struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Geofence is a circular region registered with the host for enter/exit/dwell events
type Geofence struct {
	ID          string   `json:"id"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Radius      float64  `json:"radius"`
	Transitions []string `json:"transitions"`
}

// Alarm is a one-shot wake-up registered for a TIME trigger
type Alarm struct {
	Key       string    `json:"key"`
	RuleID    string    `json:"rule_id"`
	TriggerID string    `json:"trigger_id"`
	FireAt    time.Time `json:"fire_at"`
}
