package executor

import (
	"context"
	"strconv"

	"github.com/oliveagle/jsonpath"
)

// switchExecutor turns a jsonpath lookup over the run context into the
// symbolic event that drives a decision state's transitions.
type switchExecutor struct{}

func NewSwitchExecutor() *switchExecutor { return &switchExecutor{} }

func (e *switchExecutor) Name() string { return "switch" }

type switchConfig struct {
	Expression string `mapstructure:"expression"`
}

func (e *switchExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[switchConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	expressionValue, err := jsonpath.JsonPathLookup(inv.Run.Context, conf.Expression)
	if err != nil {
		return Result{}, err
	}
	event := ""
	switch expValue := expressionValue.(type) {
	case int:
		event = strconv.Itoa(expValue)
	case int64:
		event = strconv.FormatInt(expValue, 10)
	case float64:
		event = strconv.Itoa(int(expValue))
	case bool:
		event = strconv.FormatBool(expValue)
	case string:
		event = expValue
	}
	return Result{Event: event}, nil
}
