package agent

import (
	"context"
	"sync"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/classify"
	"github.com/chatwright/chatwright/config"
	"github.com/chatwright/chatwright/executor"
	"github.com/chatwright/chatwright/flow"
	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/orchestrator"
	"github.com/chatwright/chatwright/persistence"
	"github.com/chatwright/chatwright/persistence/inmem"
	rd "github.com/chatwright/chatwright/persistence/redis"
	"github.com/chatwright/chatwright/rest"
	"github.com/chatwright/chatwright/telemetry"
	"github.com/chatwright/chatwright/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collaborators are the external systems the core talks to through
// executors and classifier tiers. Entries left nil simply disable the
// capability that needs them.
type Collaborators struct {
	Generator executor.TextGenerator
	Searcher  executor.Searcher
	Backend   executor.BusinessBackend
	Model     classify.Model
	Labels    []string
	Fallback  orchestrator.Fallback
}

// Agent wires the whole orchestration core together and owns its
// lifecycle.
type Agent struct {
	Config        config.Config
	collaborators Collaborators

	runStore     persistence.RunStore
	locker       persistence.Locker
	catalogStore persistence.CatalogStore
	metrics      *telemetry.Metrics
	promRegistry *prometheus.Registry
	sink         telemetry.Sink
	collector    *telemetry.LogFileCollector
	registry     *executor.Registry
	catalog      catalog.Service
	classifier   *classify.Classifier
	engine       *flow.Engine
	orchestrator *orchestrator.Orchestrator
	httpServer   *rest.Server

	shutdown     bool
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config, collaborators Collaborators) (*Agent, error) {
	a := &Agent{
		Config:        conf,
		collaborators: collaborators,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupTelemetry,
		a.setupRegistry,
		a.setupCatalog,
		a.setupClassifier,
		a.setupOrchestrator,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_INMEM:
		a.runStore = inmem.NewRunStore()
		a.locker = inmem.NewLocker()
		a.catalogStore = inmem.NewCatalogStore()
	default:
		rdConf := rd.Config{
			Addrs:          a.Config.RedisConfig.Addrs,
			Namespace:      a.Config.RedisConfig.Namespace,
			Password:       a.Config.RedisConfig.Password,
			PartitionCount: a.Config.PartitionCount,
		}
		a.runStore = rd.NewRunStore(rdConf, util.NewJsonEncoderDecoder[model.FlowRun](), a.Config.RunTTL)
		a.locker = rd.NewLocker(rdConf)
		a.catalogStore = rd.NewCatalogStore(rdConf, util.NewJsonEncoderDecoder[model.FlowDefinition]())
	}
	return nil
}

func (a *Agent) setupTelemetry() error {
	a.promRegistry = prometheus.NewRegistry()
	a.metrics = telemetry.NewMetrics(a.promRegistry)
	if a.Config.TelemetryFile == "" {
		a.sink = telemetry.NewNopSink()
		return nil
	}
	collector, err := telemetry.NewLogFileCollector(a.Config.TelemetryFile, 1024, a.metrics, &a.wg)
	if err != nil {
		return err
	}
	a.collector = collector
	a.sink = collector
	return nil
}

func (a *Agent) setupRegistry() error {
	a.registry = executor.NewRegistry(a.Config.ExecutorTimeout)
	a.registry.Register(executor.NewSayExecutor())
	a.registry.Register(executor.NewOptionsExecutor())
	a.registry.Register(executor.NewRequestInputExecutor())
	a.registry.Register(executor.NewSetContextExecutor())
	a.registry.Register(executor.NewUpdateContextExecutor())
	a.registry.Register(executor.NewSwitchExecutor())
	a.registry.Register(executor.NewScriptExecutor())
	if a.collaborators.Generator != nil {
		a.registry.Register(executor.NewAskLLMExecutor(a.collaborators.Generator))
	}
	if a.collaborators.Searcher != nil {
		a.registry.Register(executor.NewSearchCatalogExecutor(a.collaborators.Searcher))
	}
	if a.collaborators.Backend != nil {
		a.registry.Register(executor.NewPlaceOrderExecutor(a.collaborators.Backend))
		a.registry.Register(executor.NewValidateAddressExecutor(a.collaborators.Backend))
	}
	logger.Info("executors registered", zap.Strings("executors", a.registry.Names()))
	return nil
}

func (a *Agent) setupCatalog() error {
	a.catalog = catalog.NewService(a.catalogStore, a.registry)
	if a.Config.CatalogDir == "" {
		return nil
	}
	defs, err := catalog.LoadDir(a.Config.CatalogDir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := a.catalog.Publish(context.Background(), def); err != nil {
			return err
		}
	}
	logger.Info("flow catalog seeded", zap.Int("flows", len(defs)), zap.String("dir", a.Config.CatalogDir))
	return nil
}

func (a *Agent) setupClassifier() error {
	conf := a.Config.ClassifierConfig
	labels := a.collaborators.Labels
	if len(labels) == 0 {
		for label := range classify.DefaultKeywords() {
			labels = append(labels, label)
		}
	}
	tiers := []classify.Tier{
		classify.NewPatternTier(classify.DefaultRules(), conf.PatternThreshold),
	}
	if a.collaborators.Model != nil {
		tiers = append(tiers, classify.NewModelTier(a.collaborators.Model, conf.ModelThreshold))
	}
	if a.collaborators.Generator != nil {
		tiers = append(tiers, classify.NewGenerativeTier(a.collaborators.Generator, labels, conf.GenerativeThreshold))
	}
	tiers = append(tiers, classify.NewKeywordTier(classify.DefaultKeywords()))
	a.classifier = classify.NewClassifier(tiers, conf.TierTimeout, a.sink, a.metrics)
	return nil
}

func (a *Agent) setupOrchestrator() error {
	a.engine = flow.NewEngine(a.catalog, a.registry, a.sink, a.metrics)
	a.orchestrator = orchestrator.New(a.classifier, a.catalog, a.engine, a.runStore, a.locker,
		a.collaborators.Fallback, a.Config.SessionLockTTL)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.orchestrator, a.catalog, a.runStore, a.promRegistry)
	return err
}

func (a *Agent) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			if a.collector != nil {
				a.collector.Stop()
			}
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
