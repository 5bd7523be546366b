package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/classify"
	"github.com/chatwright/chatwright/executor"
	"github.com/chatwright/chatwright/flow"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/orchestrator"
	"github.com/chatwright/chatwright/persistence/inmem"
	"github.com/chatwright/chatwright/rest"
	"github.com/chatwright/chatwright/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type orderTier struct{}

func (orderTier) Name() string       { return "stub" }
func (orderTier) Threshold() float64 { return 0.5 }
func (orderTier) Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error) {
	if strings.Contains(strings.ToLower(text), "order") {
		return model.Classification{Intent: "place_order", Confidence: 0.9}, nil
	}
	return model.Classification{Intent: model.INTENT_UNKNOWN}, nil
}

func newTestServer(t *testing.T) (*rest.Server, *inmem.RunStore) {
	registry := executor.NewRegistry(time.Second)
	registry.Register(executor.NewSayExecutor())

	store := inmem.NewRunStore()
	svc := catalog.NewService(inmem.NewCatalogStore(), registry)
	classifier := classify.NewClassifier([]classify.Tier{orderTier{}}, time.Second, nil, nil)
	promReg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(promReg)
	engine := flow.NewEngine(svc, registry, nil, metrics)
	orch := orchestrator.New(classifier, svc, engine, store, inmem.NewLocker(), nil, time.Second)

	server, err := rest.NewServer(0, orch, svc, store, promReg)
	require.NoError(t, err)
	return server, store
}

func do(server *rest.Server, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

const orderFlowJson = `{
	"id": "order-food",
	"version": 1,
	"triggers": ["place_order"],
	"initialState": "init",
	"finalStates": ["done"],
	"states": {
		"init": {
			"kind": "action",
			"actions": [{"name": "greet", "executor": "say", "config": {"text": "How many?"}}],
			"transitions": {"default": "done"}
		},
		"done": {
			"kind": "terminal",
			"actions": [{"name": "thanks", "executor": "say", "config": {"text": "Done!"}}]
		}
	}
}`

func TestFlowEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodPost, "/flow", orderFlowJson)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodGet, "/flow/order-food", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var def model.FlowDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	require.Equal(t, "order-food", def.Id)

	rec = do(server, http.MethodGet, "/flows", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodGet, "/flow/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishRejectsDefectiveFlow(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodPost, "/flow",
		`{"id": "broken", "initialState": "missing", "states": {}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageEndpoint(t *testing.T) {
	server, store := newTestServer(t)

	rec := do(server, http.MethodPost, "/flow", orderFlowJson)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodPost, "/message", `{"sessionId": "s1", "text": "order food"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Fragments model.OutboundPayload `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "How many?", resp.Fragments[0].Text)
	require.Equal(t, "Done!", resp.Fragments[1].Text)

	// the flow completed in one step, so no run is left active
	_, err := store.ActiveRun(context.Background(), "s1")
	require.Error(t, err)

	rec = do(server, http.MethodPost, "/message", `{"text": "no session"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelRunEndpoint(t *testing.T) {
	server, store := newTestServer(t)

	rec := do(server, http.MethodDelete, "/session/s1/run", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	run := &model.FlowRun{
		RunId: "run-1", FlowId: "order-food", SessionId: "s1",
		CurrentState: "init", Status: model.RUN_STATUS_RUNNING,
		Context: map[string]any{}, Collected: map[string]bool{},
	}
	require.NoError(t, store.Save(context.Background(), run, 0))
	claimed, err := store.SetActiveRun(context.Background(), "s1", "run-1")
	require.NoError(t, err)
	require.True(t, claimed)

	rec = do(server, http.MethodDelete, "/session/s1/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodGet, "/run/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled model.FlowRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.Equal(t, model.RUN_STATUS_CANCELLED, cancelled.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
