package telemetry

import "github.com/chatwright/chatwright/model"

// Sink receives classification results and step outcomes for offline
// model improvement and operator visibility. Implementations must
// never block the request path.
type Sink interface {
	RecordClassification(result model.Classification)
	RecordStep(outcome model.StepOutcome)
}

type nopSink struct{}

func (nopSink) RecordClassification(model.Classification) {}
func (nopSink) RecordStep(model.StepOutcome)              {}

func NewNopSink() Sink {
	return nopSink{}
}
