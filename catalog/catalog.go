package catalog

import (
	"context"
	"time"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Service is the read surface over published flow definitions plus the
// validated publish path. Definitions are immutable per version, so a
// per-process cache is safe.
type Service interface {
	GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error)
	ListFlows(ctx context.Context) ([]model.FlowDefinition, error)
	FindByTrigger(ctx context.Context, intent string) (*model.FlowDefinition, error)
	Publish(ctx context.Context, def model.FlowDefinition) error
	Delete(ctx context.Context, id string) error
}

// ExecutorChecker lets publish-time validation reject flows naming
// executors the registry does not know, instead of failing mid-run.
type ExecutorChecker interface {
	Has(name string) bool
}

type service struct {
	storage  persistence.CatalogStore
	checker  ExecutorChecker
	defCache *c.Cache
}

func NewService(storage persistence.CatalogStore, checker ExecutorChecker) Service {
	return &service{
		storage:  storage,
		checker:  checker,
		defCache: c.New(c.NoExpiration, 10*time.Minute),
	}
}

func (s *service) GetFlow(ctx context.Context, id string) (*model.FlowDefinition, error) {
	if cached, found := s.defCache.Get(id); found {
		return cached.(*model.FlowDefinition), nil
	}
	def, err := s.storage.GetFlowDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	s.defCache.Set(id, def, c.NoExpiration)
	return def, nil
}

func (s *service) ListFlows(ctx context.Context) ([]model.FlowDefinition, error) {
	return s.storage.ListFlowDefinitions(ctx)
}

func (s *service) FindByTrigger(ctx context.Context, intent string) (*model.FlowDefinition, error) {
	defs, err := s.storage.ListFlowDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		for _, trigger := range def.Triggers {
			if trigger == intent {
				found := def
				return &found, nil
			}
		}
	}
	return nil, persistence.ErrNotFound
}

func (s *service) Publish(ctx context.Context, def model.FlowDefinition) error {
	if err := Validate(def, s.checker); err != nil {
		return err
	}
	if err := s.storage.SaveFlowDefinition(ctx, def); err != nil {
		return err
	}
	s.defCache.Set(def.Id, &def, c.NoExpiration)
	logger.Info("flow published", zap.String("flow", def.Id), zap.Int("version", def.Version))
	return nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	s.defCache.Delete(id)
	return s.storage.DeleteFlowDefinition(ctx, id)
}
