package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatwright/chatwright/executor"
	"github.com/chatwright/chatwright/model"
)

const generativePrompt = `You are an intent classifier for a shopping assistant.
Classify the user message into exactly one of these intents: %s.
Respond with JSON only: {"intent": "<label>", "confidence": <0..1>, "entities": {"key": "value"}}.
User message (language hint %q): %s`

// generativeTier asks the language model for a structured
// classification constrained to the valid label set. It is the slowest
// and most expensive tier, used only when the cheaper tiers are
// inconclusive.
type generativeTier struct {
	generator executor.TextGenerator
	labels    []string
	threshold float64
}

func NewGenerativeTier(generator executor.TextGenerator, labels []string, threshold float64) *generativeTier {
	return &generativeTier{generator: generator, labels: labels, threshold: threshold}
}

func (t *generativeTier) Name() string { return "generative" }

func (t *generativeTier) Threshold() float64 { return t.threshold }

type generativeReply struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

func (t *generativeTier) Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error) {
	prompt := fmt.Sprintf(generativePrompt, strings.Join(t.labels, ", "), hints.Language, text)
	raw, err := t.generator.Generate(ctx, prompt, nil)
	if err != nil {
		return model.Classification{}, err
	}
	var reply generativeReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return model.Classification{}, fmt.Errorf("generative tier returned unparseable output: %w", err)
	}
	if !t.validLabel(reply.Intent) {
		return model.Classification{Intent: model.INTENT_UNKNOWN, Confidence: 0}, nil
	}
	if reply.Confidence < 0 {
		reply.Confidence = 0
	}
	if reply.Confidence > 1 {
		reply.Confidence = 1
	}
	return model.Classification{
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Entities:   reply.Entities,
	}, nil
}

func (t *generativeTier) validLabel(label string) bool {
	for _, l := range t.labels {
		if l == label {
			return true
		}
	}
	return false
}

// extractJSON tolerates models that wrap the JSON object in prose or
// code fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
