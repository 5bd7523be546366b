package executor

import (
	"context"
	"time"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Invocation is everything an executor receives: the run it is acting
// for, the action spec naming it, and its configuration with {$.path}
// tokens already resolved against the run context.
type Invocation struct {
	Run    *model.FlowRun
	Action model.ActionSpec
	Params map[string]any
}

// Result carries the symbolic outcome event, context writes and any
// outbound fragments produced by the executor.
type Result struct {
	Event     string
	Writes    map[string]any
	Overwrite bool
	Fragments model.OutboundPayload
}

// Executor is a pluggable, named unit of side-effecting behavior. It
// is the only place the core talks to external collaborators.
type Executor interface {
	Name() string
	Execute(ctx context.Context, inv Invocation) (Result, error)
}

// Registry resolves executor names at startup; an unknown name at
// invoke time is a flow-definition defect, not a runtime fault.
type Registry struct {
	executors map[string]Executor
	timeout   time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		timeout:   timeout,
	}
}

func (r *Registry) Register(ex Executor) {
	if _, ok := r.executors[ex.Name()]; ok {
		logger.Warn("executor already registered, replacing", zap.String("executor", ex.Name()))
	}
	r.executors[ex.Name()] = ex
}

func (r *Registry) Has(name string) bool {
	_, ok := r.executors[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}

func (r *Registry) Invoke(ctx context.Context, name string, inv Invocation) (Result, error) {
	ex, ok := r.executors[name]
	if !ok {
		return Result{}, model.NewDefectError(inv.Run.FlowId, inv.Run.CurrentState, "unknown executor %q", name)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	res, err := ex.Execute(ctx, inv)
	if err != nil {
		return res, err
	}
	if res.Event == "" {
		res.Event = model.EVENT_SUCCESS
	}
	return res, nil
}

// DecodeConfig maps a resolved parameter map onto a typed executor
// configuration struct.
func DecodeConfig[T any](params map[string]any) (T, error) {
	var conf T
	err := mapstructure.Decode(params, &conf)
	return conf, err
}
