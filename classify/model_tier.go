package classify

import (
	"context"

	"github.com/chatwright/chatwright/model"
)

// Model is the narrow contract to the trained statistical classifier
// collaborator.
type Model interface {
	Predict(ctx context.Context, text string) (label string, score float64, err error)
}

type modelTier struct {
	model     Model
	threshold float64
}

func NewModelTier(m Model, threshold float64) *modelTier {
	return &modelTier{model: m, threshold: threshold}
}

func (t *modelTier) Name() string { return "model" }

func (t *modelTier) Threshold() float64 { return t.threshold }

func (t *modelTier) Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error) {
	label, score, err := t.model.Predict(ctx, text)
	if err != nil {
		return model.Classification{}, err
	}
	return model.Classification{Intent: label, Confidence: score}, nil
}
