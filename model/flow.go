package model

type StateKind string

const STATE_KIND_ACTION StateKind = "action"
const STATE_KIND_INPUT StateKind = "input"
const STATE_KIND_DECISION StateKind = "decision"
const STATE_KIND_TERMINAL StateKind = "terminal"

type InputKind string

const INPUT_KIND_TEXT InputKind = "text"
const INPUT_KIND_NUMBER InputKind = "number"
const INPUT_KIND_OPTION InputKind = "option"
const INPUT_KIND_CODE InputKind = "code"
const INPUT_KIND_LOCATION InputKind = "location"

// Symbolic events understood by every flow.
const EVENT_SUCCESS = "success"
const EVENT_ERROR = "error"
const EVENT_VALID = "valid"
const EVENT_INVALID = "invalid"
const EVENT_DEFAULT = "default"

// FlowDefinition is an immutable, versioned conversation script. Flows
// are stored as data and interpreted by the engine one state per
// inbound message.
type FlowDefinition struct {
	Id           string               `json:"id" yaml:"id"`
	Version      int                  `json:"version" yaml:"version"`
	Module       string               `json:"module" yaml:"module"`
	Triggers     []string             `json:"triggers" yaml:"triggers"`
	InitialState string               `json:"initialState" yaml:"initialState"`
	FinalStates  []string             `json:"finalStates" yaml:"finalStates"`
	States       map[string]StateSpec `json:"states" yaml:"states"`
}

type StateSpec struct {
	Kind        StateKind         `json:"kind" yaml:"kind"`
	Actions     []ActionSpec      `json:"actions" yaml:"actions"`
	Input       *InputSpec        `json:"input,omitempty" yaml:"input,omitempty"`
	Transitions map[string]string `json:"transitions" yaml:"transitions"`
}

type ActionSpec struct {
	Name     string         `json:"name" yaml:"name"`
	Executor string         `json:"executor" yaml:"executor"`
	Config   map[string]any `json:"config" yaml:"config"`
}

// InputSpec declares what an input state expects from the user and
// under which context key the validated value is collected.
type InputSpec struct {
	Kind     InputKind `json:"kind" yaml:"kind"`
	Key      string    `json:"key" yaml:"key"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Reprompt string    `json:"reprompt,omitempty" yaml:"reprompt,omitempty"`
}

func (f *FlowDefinition) IsFinal(state string) bool {
	for _, s := range f.FinalStates {
		if s == state {
			return true
		}
	}
	return false
}
