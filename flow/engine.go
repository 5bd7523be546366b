package flow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/executor"
	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/telemetry"
	"github.com/chatwright/chatwright/util"
	"go.uber.org/zap"
)

// Engine advances a run by exactly one state transition per inbound
// message. It is stateless between steps: everything it needs is the
// flow definition and the run loaded from the context store, which is
// what makes runs resumable across process restarts.
type Engine struct {
	catalog  catalog.Service
	registry *executor.Registry
	sink     telemetry.Sink
	metrics  *telemetry.Metrics
}

func NewEngine(catalogService catalog.Service, registry *executor.Registry, sink telemetry.Sink, metrics *telemetry.Metrics) *Engine {
	if sink == nil {
		sink = telemetry.NewNopSink()
	}
	return &Engine{
		catalog:  catalogService,
		registry: registry,
		sink:     sink,
		metrics:  metrics,
	}
}

// Step runs the current state's actions, derives the triggering event,
// resolves the transition and mutates the run in place. The caller
// owns persisting the run afterwards.
func (e *Engine) Step(ctx context.Context, run *model.FlowRun, event model.InboundEvent) (*model.StepResult, error) {
	started := time.Now()
	result, err := e.step(ctx, run, event)
	if e.metrics != nil {
		e.metrics.StepLatency.Observe(time.Since(started).Seconds())
	}
	outcome := model.StepOutcome{
		RunId:     run.RunId,
		FlowId:    run.FlowId,
		SessionId: run.SessionId,
		Status:    run.Status,
	}
	if result != nil {
		outcome.FromState = result.FromState
		outcome.ToState = result.ToState
		outcome.Event = result.Event
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	e.sink.RecordStep(outcome)
	return result, err
}

func (e *Engine) step(ctx context.Context, run *model.FlowRun, event model.InboundEvent) (*model.StepResult, error) {
	if !run.Active() {
		return nil, model.NewDefectError(run.FlowId, run.CurrentState, "can not step a %s run", run.Status)
	}
	def, err := e.catalog.GetFlow(ctx, run.FlowId)
	if err != nil {
		return nil, err
	}
	state, ok := def.States[run.CurrentState]
	if !ok {
		return nil, e.failRun(run, model.NewDefectError(run.FlowId, run.CurrentState, "state is not declared"))
	}

	result := &model.StepResult{FromState: run.CurrentState}
	triggerEvent := model.EVENT_SUCCESS

	if state.Kind == model.STATE_KIND_INPUT {
		triggerEvent = e.collectInput(run, state.Input, event, result)
	}

	// actions run in declared order; a non-success event short-circuits
	// the rest of the state. For input states the validation event is
	// the trigger; an action can only override it with a non-success
	// event.
	if triggerEvent != model.EVENT_INVALID {
		for _, actionSpec := range state.Actions {
			actionEvent, err := e.runAction(ctx, run, def, actionSpec, result)
			if err != nil {
				if defect, ok := err.(model.DefectError); ok {
					return result, e.failRun(run, defect)
				}
				logger.Error("executor failed",
					zap.String("runId", run.RunId),
					zap.String("state", run.CurrentState),
					zap.String("executor", actionSpec.Executor),
					zap.Error(err))
				if _, declared := state.Transitions[model.EVENT_ERROR]; declared {
					triggerEvent = model.EVENT_ERROR
					break
				}
				return result, e.failRun(run, err)
			}
			if actionEvent != model.EVENT_SUCCESS {
				triggerEvent = actionEvent
				break
			}
			if state.Kind != model.STATE_KIND_INPUT {
				triggerEvent = actionEvent
			}
		}
	}

	nextState, declared := transitionTarget(state, triggerEvent)
	if !declared {
		return result, e.failRun(run, model.NewDefectError(run.FlowId, run.CurrentState,
			"no transition for event %q and no default", triggerEvent))
	}

	run.CurrentState = nextState
	result.Event = triggerEvent
	result.ToState = nextState
	if def.IsFinal(nextState) {
		e.complete(ctx, run, def, result)
	}
	logger.Debug("step",
		zap.String("runId", run.RunId),
		zap.String("from", result.FromState),
		zap.String("event", triggerEvent),
		zap.String("to", nextState))
	return result, nil
}

// complete runs the terminal state's actions (a completion message,
// typically) and marks the run completed.
func (e *Engine) complete(ctx context.Context, run *model.FlowRun, def *model.FlowDefinition, result *model.StepResult) {
	terminal := def.States[run.CurrentState]
	for _, actionSpec := range terminal.Actions {
		if _, err := e.runAction(ctx, run, def, actionSpec, result); err != nil {
			logger.Error("terminal action failed, completing run anyway",
				zap.String("runId", run.RunId), zap.String("executor", actionSpec.Executor), zap.Error(err))
			break
		}
	}
	now := time.Now()
	run.Status = model.RUN_STATUS_COMPLETED
	run.CompletedAt = &now
	result.Completed = true
}

func (e *Engine) runAction(ctx context.Context, run *model.FlowRun, def *model.FlowDefinition, spec model.ActionSpec, result *model.StepResult) (string, error) {
	params := util.ResolveParams(run.Context, spec.Config)
	inv := executor.Invocation{Run: run, Action: spec, Params: params}
	res, err := e.registry.Invoke(ctx, spec.Executor, inv)
	if err != nil {
		return res.Event, err
	}
	if err := e.applyWrites(run, res); err != nil {
		return res.Event, err
	}
	result.Fragments = append(result.Fragments, res.Fragments...)
	return res.Event, nil
}

// applyWrites merges executor writes into the run context. A collected
// key may be read but never silently overwritten; only an executor
// that declares the overwrite (update-context) may replace it.
func (e *Engine) applyWrites(run *model.FlowRun, res executor.Result) error {
	for key, value := range res.Writes {
		if run.Collected[key] && !res.Overwrite {
			return model.NewDefectError(run.FlowId, run.CurrentState,
				"write to collected key %q without explicit update", key)
		}
		run.Context[key] = value
	}
	return nil
}

func (e *Engine) failRun(run *model.FlowRun, err error) error {
	now := time.Now()
	run.Status = model.RUN_STATUS_FAILED
	run.CompletedAt = &now
	if run.LastError == "" {
		run.LastError = err.Error()
	}
	return err
}

// collectInput validates inbound text against the state's declared
// expectation. A valid value is written under the declared key and the
// state's actions run; an invalid one yields the invalid event so the
// flow can re-prompt.
func (e *Engine) collectInput(run *model.FlowRun, spec *model.InputSpec, event model.InboundEvent, result *model.StepResult) string {
	if event.Resume {
		return model.EVENT_SUCCESS
	}
	text := strings.TrimSpace(event.Text)
	outcome := e.validateInput(run, spec, text)
	if outcome == model.EVENT_INVALID && spec.Reprompt != "" {
		result.Fragments = append(result.Fragments, model.TextFragment(spec.Reprompt))
	}
	return outcome
}

func (e *Engine) validateInput(run *model.FlowRun, spec *model.InputSpec, text string) string {
	var value any
	switch spec.Kind {
	case model.INPUT_KIND_NUMBER:
		parsed, ok := parseNumber(text)
		if !ok {
			return model.EVENT_INVALID
		}
		value = parsed
	case model.INPUT_KIND_OPTION:
		matched := ""
		for _, option := range spec.Options {
			if strings.EqualFold(option, text) {
				matched = option
				break
			}
		}
		if matched == "" {
			return model.EVENT_INVALID
		}
		value = matched
	case model.INPUT_KIND_CODE:
		if len(text) < 4 || len(text) > 8 {
			return model.EVENT_INVALID
		}
		for _, r := range text {
			if r < '0' || r > '9' {
				return model.EVENT_INVALID
			}
		}
		value = text
	case model.INPUT_KIND_LOCATION:
		lat, lon, ok := parseLocation(text)
		if !ok {
			return model.EVENT_INVALID
		}
		value = map[string]any{"lat": lat, "lon": lon}
	default:
		if text == "" {
			return model.EVENT_INVALID
		}
		value = text
	}
	run.Context[spec.Key] = value
	run.Collected[spec.Key] = true
	return model.EVENT_VALID
}

// parseNumber accepts a bare number or one embedded in a short phrase
// ("2 please").
func parseNumber(text string) (float64, bool) {
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return n, true
	}
	for _, field := range strings.Fields(text) {
		if n, err := strconv.ParseFloat(field, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func parseLocation(text string) (float64, float64, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func transitionTarget(state model.StateSpec, event string) (string, bool) {
	if target, ok := state.Transitions[event]; ok {
		return target, true
	}
	if target, ok := state.Transitions[model.EVENT_DEFAULT]; ok {
		return target, true
	}
	return "", false
}
