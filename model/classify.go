package model

// Intent returned when no tier can do better.
const INTENT_UNKNOWN = "unknown"

// Classification is the ephemeral result of running the tiered
// classifier over one inbound message. It is reported to telemetry but
// never persisted with the run.
type Classification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Method     string            `json:"method"`
	Entities   map[string]string `json:"entities,omitempty"`
}

// Hints carry conversational facts that tiers may use to bias a
// result, e.g. the user's language or the last classified intent.
type Hints struct {
	Language   string `json:"language,omitempty"`
	LastIntent string `json:"lastIntent,omitempty"`
}
