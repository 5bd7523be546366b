package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/classify"
	"github.com/chatwright/chatwright/flow"
	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fallback produces a response when no flow matches the classified
// intent. The orchestrator guarantees the user always gets an answer.
type Fallback interface {
	Handle(ctx context.Context, sessionId string, text string, classification model.Classification) model.OutboundPayload
}

type defaultFallback struct{}

func (defaultFallback) Handle(ctx context.Context, sessionId string, text string, classification model.Classification) model.OutboundPayload {
	return model.OutboundPayload{
		model.TextFragment("Sorry, I did not understand that. You can ask me to search products, place an order or book a slot."),
	}
}

func NewDefaultFallback() Fallback {
	return defaultFallback{}
}

const restartFragment = "Something went wrong on our side. Let's start over - what would you like to do?"
const resendFragment = "I could not process that message, please resend it."

var resetPattern = regexp.MustCompile(`^(reset|restart|start over|cancelar|reiniciar)$`)

// Orchestrator composes the classifier, the catalog, the engine and
// the context store into the per-message entry point. It owns the
// at-most-one-active-run-per-session invariant.
type Orchestrator struct {
	classifier *classify.Classifier
	catalog    catalog.Service
	engine     *flow.Engine
	store      persistence.RunStore
	locker     persistence.Locker
	fallback   Fallback
	lockTTL    time.Duration
}

func New(classifier *classify.Classifier, catalogService catalog.Service, engine *flow.Engine, store persistence.RunStore, locker persistence.Locker, fallback Fallback, lockTTL time.Duration) *Orchestrator {
	if fallback == nil {
		fallback = defaultFallback{}
	}
	return &Orchestrator{
		classifier: classifier,
		catalog:    catalogService,
		engine:     engine,
		store:      store,
		locker:     locker,
		fallback:   fallback,
		lockTTL:    lockTTL,
	}
}

// HandleMessage processes exactly one inbound message for a session:
// resume the active run if there is one, otherwise classify the text
// and start a matching flow, otherwise fall back. Steps for one
// session are serialized by a session lock.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionId string, text string) (model.OutboundPayload, error) {
	unlock, err := o.locker.Lock(ctx, sessionId, o.lockTTL)
	if err != nil {
		logger.Warn("could not acquire session lock", zap.String("sessionId", sessionId), zap.Error(err))
		return model.OutboundPayload{model.TextFragment(resendFragment)}, nil
	}
	defer unlock(context.Background())

	runId, err := o.store.ActiveRun(ctx, sessionId)
	if err == nil {
		// reset commands are the one escape hatch that bypasses the
		// active flow
		if resetPattern.MatchString(strings.ToLower(strings.TrimSpace(text))) {
			if cancelErr := o.CancelRun(ctx, sessionId); cancelErr != nil {
				logger.Warn("could not cancel run on reset", zap.String("sessionId", sessionId), zap.Error(cancelErr))
			}
			return model.OutboundPayload{model.TextFragment("Okay, starting over. What would you like to do?")}, nil
		}
		return o.resume(ctx, sessionId, runId, text)
	}
	if err != persistence.ErrNotFound {
		return nil, err
	}
	return o.start(ctx, sessionId, text)
}

func (o *Orchestrator) resume(ctx context.Context, sessionId string, runId string, text string) (model.OutboundPayload, error) {
	payload, err := o.stepWithRetry(ctx, runId, model.InboundEvent{Text: text}, true)
	if err == persistence.ErrNotFound {
		// the run expired underneath the session pointer
		o.store.ClearActiveRun(ctx, sessionId, runId)
		return o.start(ctx, sessionId, text)
	}
	return payload, err
}

// stepWithRetry performs one engine step guarded by the run's
// optimistic version. On a stale save it reloads once; if the run has
// moved on, the message is treated as consumed by the racing step.
func (o *Orchestrator) stepWithRetry(ctx context.Context, runId string, event model.InboundEvent, retry bool) (model.OutboundPayload, error) {
	run, err := o.store.Load(ctx, runId)
	if err != nil {
		return nil, err
	}
	if !run.Active() {
		o.store.ClearActiveRun(ctx, run.SessionId, run.RunId)
		return model.OutboundPayload{model.TextFragment(restartFragment)}, nil
	}
	expectedVersion := run.Version
	result, stepErr := o.engine.Step(ctx, run, event)
	if stepErr != nil {
		// run is marked failed; persist best-effort and offer restart
		if saveErr := o.store.Save(ctx, run, expectedVersion); saveErr != nil {
			logger.Error("could not persist failed run", zap.String("runId", runId), zap.Error(saveErr))
		}
		o.store.ClearActiveRun(ctx, run.SessionId, run.RunId)
		logger.Error("step failed", zap.String("runId", runId), zap.Error(stepErr))
		payload := model.OutboundPayload{}
		if result != nil {
			payload = append(payload, result.Fragments...)
		}
		return append(payload, model.TextFragment(restartFragment)), nil
	}
	if err := o.store.Save(ctx, run, expectedVersion); err != nil {
		if err == persistence.ErrStaleVersion && retry {
			logger.Debug("stale run version, retrying once", zap.String("runId", runId))
			return o.stepWithRetry(ctx, runId, event, false)
		}
		if err == persistence.ErrStaleVersion {
			return model.OutboundPayload{model.TextFragment(resendFragment)}, nil
		}
		return nil, err
	}
	if result.Completed {
		o.store.ClearActiveRun(ctx, run.SessionId, run.RunId)
	}
	return result.Fragments, nil
}

func (o *Orchestrator) start(ctx context.Context, sessionId string, text string) (model.OutboundPayload, error) {
	classification := o.classifier.Classify(ctx, text, model.Hints{})
	if classification.Intent == model.INTENT_UNKNOWN {
		return o.fallback.Handle(ctx, sessionId, text, classification), nil
	}
	def, err := o.catalog.FindByTrigger(ctx, classification.Intent)
	if err == persistence.ErrNotFound {
		return o.fallback.Handle(ctx, sessionId, text, classification), nil
	}
	if err != nil {
		return nil, err
	}

	run := &model.FlowRun{
		RunId:        uuid.New().String(),
		FlowId:       def.Id,
		FlowVersion:  def.Version,
		SessionId:    sessionId,
		CurrentState: def.InitialState,
		Status:       model.RUN_STATUS_RUNNING,
		Context:      map[string]any{"message": text, "intent": classification.Intent},
		Collected:    make(map[string]bool),
		StartedAt:    time.Now(),
	}
	for key, value := range classification.Entities {
		run.Context["entities."+key] = value
	}
	if err := o.store.Save(ctx, run, 0); err != nil {
		return nil, err
	}
	claimed, err := o.store.SetActiveRun(ctx, sessionId, run.RunId)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// lost a race for the session; the winning run consumes the
		// next message instead
		o.store.Delete(ctx, run.RunId)
		return model.OutboundPayload{model.TextFragment(resendFragment)}, nil
	}
	logger.Info("flow started",
		zap.String("flow", def.Id),
		zap.String("runId", run.RunId),
		zap.String("sessionId", sessionId),
		zap.String("intent", classification.Intent))
	return o.stepWithRetry(ctx, run.RunId, model.InboundEvent{Text: text}, true)
}

// CancelRun cancels the session's active run, if any.
func (o *Orchestrator) CancelRun(ctx context.Context, sessionId string) error {
	runId, err := o.store.ActiveRun(ctx, sessionId)
	if err != nil {
		return err
	}
	run, err := o.store.Load(ctx, runId)
	if err != nil {
		return err
	}
	now := time.Now()
	run.Status = model.RUN_STATUS_CANCELLED
	run.CompletedAt = &now
	if err := o.store.Save(ctx, run, run.Version); err != nil {
		return err
	}
	return o.store.ClearActiveRun(ctx, sessionId, runId)
}
