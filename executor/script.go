package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatwright/chatwright/logger"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// scriptExecutor evaluates a javascript expression with the run
// context bound to $. The script's return value drives the outcome:
// a string becomes the event, an object may carry {event, writes}.
type scriptExecutor struct{}

func NewScriptExecutor() *scriptExecutor { return &scriptExecutor{} }

func (e *scriptExecutor) Name() string { return "script" }

type scriptConfig struct {
	Expression string `mapstructure:"expression"`
}

func (e *scriptExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[scriptConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	if conf.Expression == "" {
		return Result{}, fmt.Errorf("script: expression can not be empty")
	}
	logger.Debug("running script action", zap.String("action", inv.Action.Name), zap.String("runId", inv.Run.RunId))
	vm := goja.New()
	data, err := json.Marshal(inv.Run.Context)
	if err != nil {
		return Result{}, err
	}
	script := fmt.Sprintf("var $ = %s;\n%s", data, conf.Expression)
	value, err := vm.RunString(script)
	if err != nil {
		return Result{}, fmt.Errorf("error executing script: %w", err)
	}
	exported := value.Export()
	switch out := exported.(type) {
	case string:
		return Result{Event: out}, nil
	case map[string]any:
		res := Result{}
		if ev, ok := out["event"].(string); ok {
			res.Event = ev
		}
		if writes, ok := out["writes"].(map[string]any); ok {
			res.Writes = writes
		}
		return res, nil
	case nil:
		return Result{}, nil
	default:
		return Result{Event: fmt.Sprintf("%v", out)}, nil
	}
}
