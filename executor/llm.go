package executor

import (
	"context"

	"github.com/chatwright/chatwright/model"
)

// TextGenerator is the narrow contract to a generative language model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, options map[string]any) (string, error)
}

// askLLMExecutor sends a templated prompt to the text-generation
// collaborator and replies with the generated text. The response is
// also written into the context under the configured key so later
// states can reference it.
type askLLMExecutor struct {
	generator TextGenerator
}

func NewAskLLMExecutor(generator TextGenerator) *askLLMExecutor {
	return &askLLMExecutor{generator: generator}
}

func (e *askLLMExecutor) Name() string { return "ask-llm" }

type askLLMConfig struct {
	Prompt  string         `mapstructure:"prompt"`
	Key     string         `mapstructure:"key"`
	Options map[string]any `mapstructure:"options"`
}

func (e *askLLMExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[askLLMConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	text, err := e.generator.Generate(ctx, conf.Prompt, conf.Options)
	if err != nil {
		return Result{Event: model.EVENT_ERROR}, err
	}
	res := Result{
		Fragments: model.OutboundPayload{model.TextFragment(text)},
	}
	if conf.Key != "" {
		res.Writes = map[string]any{conf.Key: text}
	}
	return res, nil
}
