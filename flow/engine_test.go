package flow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/executor"
	"github.com/chatwright/chatwright/flow"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence/inmem"
	"github.com/chatwright/chatwright/util"
	"github.com/stretchr/testify/require"
)

type blowupExecutor struct{}

func (e *blowupExecutor) Name() string { return "blowup" }
func (e *blowupExecutor) Execute(ctx context.Context, inv executor.Invocation) (executor.Result, error) {
	return executor.Result{}, errors.New("downstream unavailable")
}

func newRegistry() *executor.Registry {
	registry := executor.NewRegistry(time.Second)
	registry.Register(executor.NewSayExecutor())
	registry.Register(executor.NewSwitchExecutor())
	registry.Register(executor.NewSetContextExecutor())
	registry.Register(executor.NewUpdateContextExecutor())
	registry.Register(&blowupExecutor{})
	return registry
}

func newEngine(t *testing.T, defs ...model.FlowDefinition) (*flow.Engine, catalog.Service) {
	registry := newRegistry()
	svc := catalog.NewService(inmem.NewCatalogStore(), registry)
	for _, def := range defs {
		require.NoError(t, svc.Publish(context.Background(), def))
	}
	return flow.NewEngine(svc, registry, nil, nil), svc
}

func newRun(flowId string, initial string) *model.FlowRun {
	return &model.FlowRun{
		RunId:        "run-1",
		FlowId:       flowId,
		FlowVersion:  1,
		SessionId:    "session-1",
		CurrentState: initial,
		Status:       model.RUN_STATUS_RUNNING,
		Context:      map[string]any{},
		Collected:    map[string]bool{},
		StartedAt:    time.Now(),
	}
}

// order-food walks through a quantity prompt and a yes/no confirmation.
func orderFlow() model.FlowDefinition {
	return model.FlowDefinition{
		Id:           "order-food",
		Version:      1,
		Module:       "ordering",
		Triggers:     []string{"place_order"},
		InitialState: "init",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"init": {
				Kind: model.STATE_KIND_ACTION,
				Actions: []model.ActionSpec{
					{Name: "ask", Executor: "say", Config: map[string]any{"text": "How many?"}},
				},
				Transitions: map[string]string{model.EVENT_DEFAULT: "ask_qty"},
			},
			"ask_qty": {
				Kind:  model.STATE_KIND_INPUT,
				Input: &model.InputSpec{Kind: model.INPUT_KIND_NUMBER, Key: "qty", Reprompt: "Please reply with a number."},
				Actions: []model.ActionSpec{
					{Name: "confirm", Executor: "say", Config: map[string]any{"text": "You want {$.qty}, confirm?"}},
				},
				Transitions: map[string]string{
					model.EVENT_VALID:   "confirm",
					model.EVENT_INVALID: "ask_qty",
				},
			},
			"confirm": {
				Kind:  model.STATE_KIND_INPUT,
				Input: &model.InputSpec{Kind: model.INPUT_KIND_OPTION, Key: "confirmed", Options: []string{"yes", "no"}},
				Actions: []model.ActionSpec{
					{Name: "route", Executor: "switch", Config: map[string]any{"expression": "$.confirmed"}},
				},
				Transitions: map[string]string{
					"yes":               "done",
					"no":                "ask_qty",
					model.EVENT_INVALID: "confirm",
				},
			},
			"done": {
				Kind: model.STATE_KIND_TERMINAL,
				Actions: []model.ActionSpec{
					{Name: "thanks", Executor: "say", Config: map[string]any{"text": "Thanks, ordered!"}},
				},
			},
		},
	}
}

func TestHappyPathRun(t *testing.T) {
	engine, _ := newEngine(t, orderFlow())
	ctx := context.Background()
	run := newRun("order-food", "init")

	res, err := engine.Step(ctx, run, model.InboundEvent{Text: "I want to order"})
	require.NoError(t, err)
	require.Equal(t, "ask_qty", run.CurrentState)
	require.Len(t, res.Fragments, 1)
	require.Equal(t, "How many?", res.Fragments[0].Text)

	res, err = engine.Step(ctx, run, model.InboundEvent{Text: "2 please"})
	require.NoError(t, err)
	require.Equal(t, model.EVENT_VALID, res.Event)
	require.Equal(t, "confirm", run.CurrentState)
	require.Equal(t, float64(2), run.Context["qty"])
	require.True(t, run.Collected["qty"])
	require.Equal(t, "You want 2, confirm?", res.Fragments[0].Text)

	res, err = engine.Step(ctx, run, model.InboundEvent{Text: "yes"})
	require.NoError(t, err)
	require.Equal(t, "yes", res.Event)
	require.Equal(t, "done", run.CurrentState)
	require.True(t, res.Completed)
	require.Equal(t, model.RUN_STATUS_COMPLETED, run.Status)
	require.NotNil(t, run.CompletedAt)
	require.Equal(t, "Thanks, ordered!", res.Fragments[0].Text)
}

func TestInvalidInputLoopsWithReprompt(t *testing.T) {
	engine, _ := newEngine(t, orderFlow())
	ctx := context.Background()
	run := newRun("order-food", "ask_qty")

	res, err := engine.Step(ctx, run, model.InboundEvent{Text: "lots"})
	require.NoError(t, err)
	require.Equal(t, model.EVENT_INVALID, res.Event)
	require.Equal(t, "ask_qty", run.CurrentState)
	require.NotContains(t, run.Context, "qty")
	// only the reprompt goes out, the state's actions do not run
	require.Len(t, res.Fragments, 1)
	require.Equal(t, "Please reply with a number.", res.Fragments[0].Text)
	require.Equal(t, model.RUN_STATUS_RUNNING, run.Status)
}

func TestRunSurvivesSerialization(t *testing.T) {
	engine, _ := newEngine(t, orderFlow())
	ctx := context.Background()
	run := newRun("order-food", "init")

	_, err := engine.Step(ctx, run, model.InboundEvent{Text: "order"})
	require.NoError(t, err)
	_, err = engine.Step(ctx, run, model.InboundEvent{Text: "3"})
	require.NoError(t, err)

	encdec := util.NewJsonEncoderDecoder[model.FlowRun]()
	data, err := encdec.Encode(*run)
	require.NoError(t, err)
	restored, err := encdec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "confirm", restored.CurrentState)

	res, err := engine.Step(ctx, restored, model.InboundEvent{Text: "yes"})
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, float64(3), restored.Context["qty"])
}

func TestMissingTransitionFailsRun(t *testing.T) {
	def := model.FlowDefinition{
		Id:           "routing",
		Version:      1,
		InitialState: "decide",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"decide": {
				Kind: model.STATE_KIND_DECISION,
				Actions: []model.ActionSpec{
					{Name: "route", Executor: "switch", Config: map[string]any{"expression": "$.answer"}},
				},
				Transitions: map[string]string{"yes": "done"},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		},
	}
	engine, _ := newEngine(t, def)
	run := newRun("routing", "decide")
	run.Context["answer"] = "maybe"

	_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "maybe"})
	require.Error(t, err)
	var defect model.DefectError
	require.ErrorAs(t, err, &defect)
	require.Equal(t, model.RUN_STATUS_FAILED, run.Status)
	require.NotEmpty(t, run.LastError)
	require.NotNil(t, run.CompletedAt)
}

func TestRuntimeErrorFollowsErrorTransition(t *testing.T) {
	def := model.FlowDefinition{
		Id:           "fragile",
		Version:      1,
		InitialState: "work",
		FinalStates:  []string{"done", "apologize"},
		States: map[string]model.StateSpec{
			"work": {
				Kind: model.STATE_KIND_ACTION,
				Actions: []model.ActionSpec{
					{Name: "call", Executor: "blowup"},
				},
				Transitions: map[string]string{
					model.EVENT_DEFAULT: "done",
					model.EVENT_ERROR:   "apologize",
				},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
			"apologize": {
				Kind: model.STATE_KIND_TERMINAL,
				Actions: []model.ActionSpec{
					{Name: "sorry", Executor: "say", Config: map[string]any{"text": "Something went wrong."}},
				},
			},
		},
	}
	engine, _ := newEngine(t, def)
	run := newRun("fragile", "work")

	res, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "go"})
	require.NoError(t, err)
	require.Equal(t, model.EVENT_ERROR, res.Event)
	require.Equal(t, "apologize", run.CurrentState)
	require.Equal(t, model.RUN_STATUS_COMPLETED, run.Status)
}

func TestRuntimeErrorWithoutErrorTransitionFailsRun(t *testing.T) {
	def := model.FlowDefinition{
		Id:           "fragile",
		Version:      1,
		InitialState: "work",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"work": {
				Kind: model.STATE_KIND_ACTION,
				Actions: []model.ActionSpec{
					{Name: "call", Executor: "blowup"},
				},
				Transitions: map[string]string{model.EVENT_DEFAULT: "done"},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		},
	}
	engine, _ := newEngine(t, def)
	run := newRun("fragile", "work")

	_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "go"})
	require.Error(t, err)
	require.Equal(t, model.RUN_STATUS_FAILED, run.Status)
}

func TestCollectedKeyOverwriteGuard(t *testing.T) {
	def := model.FlowDefinition{
		Id:           "guarded",
		Version:      1,
		InitialState: "stomp",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"stomp": {
				Kind: model.STATE_KIND_ACTION,
				Actions: []model.ActionSpec{
					{Name: "write", Executor: "set-context", Config: map[string]any{
						"values": map[string]any{"qty": 99},
					}},
				},
				Transitions: map[string]string{model.EVENT_DEFAULT: "done"},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		},
	}

	t.Run("plain write to a collected key is a defect", func(t *testing.T) {
		engine, _ := newEngine(t, def)
		run := newRun("guarded", "stomp")
		run.Context["qty"] = float64(2)
		run.Collected["qty"] = true

		_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "go"})
		require.Error(t, err)
		var defect model.DefectError
		require.ErrorAs(t, err, &defect)
		require.Equal(t, model.RUN_STATUS_FAILED, run.Status)
		require.Equal(t, float64(2), run.Context["qty"])
	})

	t.Run("update-context may overwrite", func(t *testing.T) {
		updating := def
		updating.States = map[string]model.StateSpec{
			"stomp": {
				Kind: model.STATE_KIND_ACTION,
				Actions: []model.ActionSpec{
					{Name: "write", Executor: "update-context", Config: map[string]any{
						"values": map[string]any{"qty": 99},
					}},
				},
				Transitions: map[string]string{model.EVENT_DEFAULT: "done"},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		}
		engine, _ := newEngine(t, updating)
		run := newRun("guarded", "stomp")
		run.Context["qty"] = float64(2)
		run.Collected["qty"] = true

		_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "go"})
		require.NoError(t, err)
		require.Equal(t, 99, run.Context["qty"])
	})
}

func TestSteppingInactiveRun(t *testing.T) {
	engine, _ := newEngine(t, orderFlow())
	run := newRun("order-food", "init")
	run.Status = model.RUN_STATUS_COMPLETED

	_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "hello"})
	require.Error(t, err)
	var defect model.DefectError
	require.ErrorAs(t, err, &defect)
}

func TestInputValidation(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"code input": func(t *testing.T) {
			def := inputFlow(model.InputSpec{Kind: model.INPUT_KIND_CODE, Key: "otp"})
			engine, _ := newEngine(t, def)

			run := newRun("collect", "ask")
			_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "12ab"})
			require.NoError(t, err)
			require.Equal(t, "ask", run.CurrentState)

			_, err = engine.Step(context.Background(), run, model.InboundEvent{Text: "123456"})
			require.NoError(t, err)
			require.Equal(t, "done", run.CurrentState)
			require.Equal(t, "123456", run.Context["otp"])
		},
		"location input": func(t *testing.T) {
			def := inputFlow(model.InputSpec{Kind: model.INPUT_KIND_LOCATION, Key: "dropoff"})
			engine, _ := newEngine(t, def)

			run := newRun("collect", "ask")
			_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "99.9, 500"})
			require.NoError(t, err)
			require.Equal(t, "ask", run.CurrentState)

			_, err = engine.Step(context.Background(), run, model.InboundEvent{Text: "38.72, -9.14"})
			require.NoError(t, err)
			point := run.Context["dropoff"].(map[string]any)
			require.Equal(t, 38.72, point["lat"])
			require.Equal(t, -9.14, point["lon"])
		},
		"option input is case insensitive": func(t *testing.T) {
			def := inputFlow(model.InputSpec{Kind: model.INPUT_KIND_OPTION, Key: "choice", Options: []string{"Yes", "No"}})
			engine, _ := newEngine(t, def)

			run := newRun("collect", "ask")
			_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "yes"})
			require.NoError(t, err)
			// the canonical option value is stored, not the raw text
			require.Equal(t, "Yes", run.Context["choice"])
		},
		"text input rejects empty": func(t *testing.T) {
			def := inputFlow(model.InputSpec{Kind: model.INPUT_KIND_TEXT, Key: "name"})
			engine, _ := newEngine(t, def)

			run := newRun("collect", "ask")
			_, err := engine.Step(context.Background(), run, model.InboundEvent{Text: "   "})
			require.NoError(t, err)
			require.Equal(t, "ask", run.CurrentState)
		},
		"resume skips collection": func(t *testing.T) {
			def := inputFlow(model.InputSpec{Kind: model.INPUT_KIND_NUMBER, Key: "qty"})
			state := def.States["ask"]
			state.Transitions[model.EVENT_SUCCESS] = "done"
			def.States["ask"] = state
			engine, _ := newEngine(t, def)

			run := newRun("collect", "ask")
			_, err := engine.Step(context.Background(), run, model.InboundEvent{Resume: true})
			require.NoError(t, err)
			require.Equal(t, "done", run.CurrentState)
			require.NotContains(t, run.Context, "qty")
		},
	} {
		t.Run(scenario, fn)
	}
}

func inputFlow(spec model.InputSpec) model.FlowDefinition {
	return model.FlowDefinition{
		Id:           "collect",
		Version:      1,
		InitialState: "ask",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"ask": {
				Kind:  model.STATE_KIND_INPUT,
				Input: &spec,
				Transitions: map[string]string{
					model.EVENT_VALID:   "done",
					model.EVENT_INVALID: "ask",
				},
			},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		},
	}
}
