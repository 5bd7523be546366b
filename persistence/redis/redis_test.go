package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	"github.com/chatwright/chatwright/util"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (rd.UniversalClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := rd.NewUniversalClient(&rd.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleRun() *model.FlowRun {
	return &model.FlowRun{
		RunId:        "run-1",
		FlowId:       "order-food",
		SessionId:    "s1",
		CurrentState: "init",
		Status:       model.RUN_STATUS_RUNNING,
		Context:      map[string]any{"intent": "place_order"},
		Collected:    map[string]bool{},
		StartedAt:    time.Now().UTC(),
	}
}

func TestRunStoreSaveLoad(t *testing.T) {
	client, _ := testClient(t)
	store := NewRunStoreFromClient(client, "test", 4, util.NewJsonEncoderDecoder[model.FlowRun](), time.Hour)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, store.Save(ctx, run, 0))
	require.Equal(t, int64(1), run.Version)

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "order-food", loaded.FlowId)
	require.Equal(t, "place_order", loaded.Context["intent"])
	require.Equal(t, int64(1), loaded.Version)

	loaded.CurrentState = "ask_qty"
	require.NoError(t, store.Save(ctx, loaded, 1))
	require.Equal(t, int64(2), loaded.Version)

	require.NoError(t, store.Delete(ctx, "run-1"))
	_, err = store.Load(ctx, "run-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestRunStoreStaleVersion(t *testing.T) {
	client, _ := testClient(t)
	store := NewRunStoreFromClient(client, "test", 4, util.NewJsonEncoderDecoder[model.FlowRun](), time.Hour)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, store.Save(ctx, run, 0))

	// a concurrent step already advanced the run
	racing, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, racing, 1))

	stale, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	stale.CurrentState = "elsewhere"
	err = store.Save(ctx, stale, 1)
	require.ErrorIs(t, err, persistence.ErrStaleVersion)

	// creating an already-expired run is also stale
	err = store.Save(ctx, sampleRun(), 0)
	require.ErrorIs(t, err, persistence.ErrStaleVersion)

	ghost := sampleRun()
	ghost.RunId = "run-2"
	err = store.Save(ctx, ghost, 7)
	require.ErrorIs(t, err, persistence.ErrStaleVersion)
}

func TestRunStoreExpiry(t *testing.T) {
	client, mr := testClient(t)
	store := NewRunStoreFromClient(client, "test", 4, util.NewJsonEncoderDecoder[model.FlowRun](), time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleRun(), 0))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "run-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSessionPointer(t *testing.T) {
	client, _ := testClient(t)
	store := NewRunStoreFromClient(client, "test", 4, util.NewJsonEncoderDecoder[model.FlowRun](), time.Hour)
	ctx := context.Background()

	_, err := store.ActiveRun(ctx, "s1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	claimed, err := store.SetActiveRun(ctx, "s1", "run-1")
	require.NoError(t, err)
	require.True(t, claimed)

	// the session is already claimed
	claimed, err = store.SetActiveRun(ctx, "s1", "run-2")
	require.NoError(t, err)
	require.False(t, claimed)

	runId, err := store.ActiveRun(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "run-1", runId)

	// a stranger run can not release the session
	require.NoError(t, store.ClearActiveRun(ctx, "s1", "run-2"))
	runId, err = store.ActiveRun(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "run-1", runId)

	require.NoError(t, store.ClearActiveRun(ctx, "s1", "run-1"))
	_, err = store.ActiveRun(ctx, "s1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestLocker(t *testing.T) {
	client, _ := testClient(t)
	locker := NewLockerFromClient(client, "test")
	locker.pollInterval = 5 * time.Millisecond

	unlock, err := locker.Lock(context.Background(), "s1", time.Minute)
	require.NoError(t, err)

	// a second holder times out while the lock is held
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "s1", time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(context.Background()))

	unlock2, err := locker.Lock(context.Background(), "s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(context.Background()))
}

func TestLockerTTLReleasesCrashedHolder(t *testing.T) {
	client, mr := testClient(t)
	locker := NewLockerFromClient(client, "test")
	locker.pollInterval = 5 * time.Millisecond

	_, err := locker.Lock(context.Background(), "s1", 50*time.Millisecond)
	require.NoError(t, err)
	mr.FastForward(100 * time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(context.Background()))
}

func TestCatalogStore(t *testing.T) {
	client, _ := testClient(t)
	store := NewCatalogStoreFromClient(client, "test", util.NewJsonEncoderDecoder[model.FlowDefinition]())
	ctx := context.Background()

	def := model.FlowDefinition{
		Id:           "order-food",
		Version:      1,
		Triggers:     []string{"place_order"},
		InitialState: "init",
		FinalStates:  []string{"done"},
		States: map[string]model.StateSpec{
			"init": {Kind: model.STATE_KIND_ACTION, Transitions: map[string]string{"default": "done"}},
			"done": {Kind: model.STATE_KIND_TERMINAL},
		},
	}
	require.NoError(t, store.SaveFlowDefinition(ctx, def))

	got, err := store.GetFlowDefinition(ctx, "order-food")
	require.NoError(t, err)
	require.Equal(t, def.Triggers, got.Triggers)
	require.Len(t, got.States, 2)

	defs, err := store.ListFlowDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	require.NoError(t, store.DeleteFlowDefinition(ctx, "order-food"))
	_, err = store.GetFlowDefinition(ctx, "order-food")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestPartitioningIsStable(t *testing.T) {
	client, _ := testClient(t)
	store := NewRunStoreFromClient(client, "test", 16, util.NewJsonEncoderDecoder[model.FlowRun](), time.Hour)

	require.Equal(t, store.runKey("run-1"), store.runKey("run-1"))
	require.Contains(t, store.runKey("run-1"), "test:RUN:")
}
