package executor

import (
	"context"
	"fmt"

	"github.com/chatwright/chatwright/model"
)

// sayExecutor appends a plain text fragment to the outbound payload.
type sayExecutor struct{}

func NewSayExecutor() *sayExecutor { return &sayExecutor{} }

func (e *sayExecutor) Name() string { return "say" }

type sayConfig struct {
	Text string `mapstructure:"text"`
}

func (e *sayExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[sayConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Fragments: model.OutboundPayload{model.TextFragment(conf.Text)},
	}, nil
}

// optionsExecutor offers quick replies to the user.
type optionsExecutor struct{}

func NewOptionsExecutor() *optionsExecutor { return &optionsExecutor{} }

func (e *optionsExecutor) Name() string { return "options" }

type optionsConfig struct {
	Text    string `mapstructure:"text"`
	Options []struct {
		Label string `mapstructure:"label"`
		Value string `mapstructure:"value"`
	} `mapstructure:"options"`
}

func (e *optionsExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[optionsConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	replies := make([]model.QuickReply, 0, len(conf.Options))
	for _, opt := range conf.Options {
		replies = append(replies, model.QuickReply{Label: opt.Label, Value: opt.Value})
	}
	return Result{
		Fragments: model.OutboundPayload{model.OptionsFragment(conf.Text, replies)},
	}, nil
}

// requestInputExecutor asks the channel for a structured input such as
// a one-time code or a geographic coordinate.
type requestInputExecutor struct{}

func NewRequestInputExecutor() *requestInputExecutor { return &requestInputExecutor{} }

func (e *requestInputExecutor) Name() string { return "request-input" }

type requestInputConfig struct {
	Text string `mapstructure:"text"`
	Kind string `mapstructure:"kind"`
	Key  string `mapstructure:"key"`
}

func (e *requestInputExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[requestInputConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	spec := &model.InputSpec{Kind: model.InputKind(conf.Kind), Key: conf.Key}
	return Result{
		Fragments: model.OutboundPayload{model.InputRequestFragment(conf.Text, spec)},
	}, nil
}

// setContextExecutor writes configured values into the run context.
// Writing over an already collected key is refused by the engine; the
// update-context executor exists for that.
type setContextExecutor struct {
	overwrite bool
	name      string
}

func NewSetContextExecutor() *setContextExecutor {
	return &setContextExecutor{name: "set-context"}
}

func NewUpdateContextExecutor() *setContextExecutor {
	return &setContextExecutor{name: "update-context", overwrite: true}
}

func (e *setContextExecutor) Name() string { return e.name }

func (e *setContextExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	values, ok := inv.Params["values"].(map[string]any)
	if !ok {
		return Result{}, fmt.Errorf("%s: config requires a values map", e.name)
	}
	return Result{
		Writes:    values,
		Overwrite: e.overwrite,
	}, nil
}
