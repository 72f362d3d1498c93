package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

type fakeTurnStore struct {
	states  map[uuid.UUID]*types.TurnState
	failGet bool
	failSet bool
}

func newFakeTurnStore() *fakeTurnStore {
	return &fakeTurnStore{states: map[uuid.UUID]*types.TurnState{}}
}

func (f *fakeTurnStore) Get(ctx context.Context, sessionID uuid.UUID) (*types.TurnState, bool, error) {
	if f.failGet {
		return nil, false, errors.New("store down")
	}
	state, ok := f.states[sessionID]
	return state, ok, nil
}

func (f *fakeTurnStore) Set(ctx context.Context, sessionID uuid.UUID, state *types.TurnState, ttl time.Duration) error {
	if f.failSet {
		return errors.New("store down")
	}
	f.states[sessionID] = state
	return nil
}

func (f *fakeTurnStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	delete(f.states, sessionID)
	return nil
}

func (f *fakeTurnStore) Close() error { return nil }

func turnCtxFixture(t *testing.T, store *fakeTurnStore) (TurnContextService, repos.SessionRepo, *types.Session) {
	t.Helper()
	db := openTestDB(t)
	log := logger.NewNop()
	sessionRepo := repos.NewSessionRepo(db, log)

	session, err := sessionRepo.Create(context.Background(), nil, &types.Session{
		UserID:     uuid.New(),
		Status:     types.SessionStatusStarted,
		Category:   types.SessionCategoryTechnical,
		Difficulty: "medium",
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	var ts TurnContextService
	if store != nil {
		ts = NewTurnContextService(log, store, sessionRepo, time.Minute)
	} else {
		ts = NewTurnContextService(log, nil, sessionRepo, time.Minute)
	}
	return ts, sessionRepo, session
}

func TestTurnContext_LoadPrefersCache(t *testing.T) {
	store := newFakeTurnStore()
	svc, _, session := turnCtxFixture(t, store)

	cached := types.NewTurnState("cached instruction")
	cached.Append(types.TurnRoleUser, "hi")
	store.states[session.ID] = cached

	state := svc.Load(context.Background(), session)
	if state.SystemInstruction != "cached instruction" {
		t.Fatalf("expected cached state, got %q", state.SystemInstruction)
	}
}

func TestTurnContext_LoadFallsBackToDurableSnapshot(t *testing.T) {
	store := newFakeTurnStore()
	svc, sessionRepo, session := turnCtxFixture(t, store)
	ctx := context.Background()

	snapshot := types.NewTurnState("durable instruction")
	snapshot.Append(types.TurnRoleAssistant, "question one")
	raw, _ := snapshot.Marshal()
	if err := sessionRepo.SaveTurnContext(ctx, nil, session.ID, raw); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	reloaded, err := sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	state := svc.Load(ctx, reloaded)
	if state.SystemInstruction != "durable instruction" {
		t.Fatalf("expected durable snapshot, got %q", state.SystemInstruction)
	}
	if len(state.Messages) != 1 {
		t.Fatalf("snapshot messages lost")
	}
}

func TestTurnContext_LoadSurvivesStoreFailure(t *testing.T) {
	store := newFakeTurnStore()
	store.failGet = true
	svc, _, session := turnCtxFixture(t, store)

	state := svc.Load(context.Background(), session)
	if state == nil || state.Version != types.TurnStateVersion {
		t.Fatalf("expected a usable state despite store failure")
	}
}

func TestTurnContext_LoadMintsFreshStateWithSessionContext(t *testing.T) {
	svc, _, session := turnCtxFixture(t, nil)

	state := svc.Load(context.Background(), session)
	if len(state.Messages) != 0 {
		t.Fatalf("fresh state must start empty")
	}
	if !strings.Contains(state.SystemInstruction, session.Category) {
		t.Fatalf("system instruction must mention the category: %q", state.SystemInstruction)
	}
	if !strings.Contains(state.SystemInstruction, session.Difficulty) {
		t.Fatalf("system instruction must mention the difficulty")
	}
}

func TestTurnContext_LoadIgnoresCorruptSnapshot(t *testing.T) {
	svc, _, session := turnCtxFixture(t, nil)

	session.TurnContext = datatypes.JSON([]byte(`{"version": 7}`))

	state := svc.Load(context.Background(), session)
	if state.Version != types.TurnStateVersion || len(state.Messages) != 0 {
		t.Fatalf("corrupt snapshot must yield a fresh state")
	}
}

func TestTurnContext_SaveWritesBothTiers(t *testing.T) {
	store := newFakeTurnStore()
	svc, sessionRepo, session := turnCtxFixture(t, store)
	ctx := context.Background()

	state := types.NewTurnState("sys")
	state.Append(types.TurnRoleUser, "answer")
	if err := svc.Save(ctx, session.ID, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok := store.states[session.ID]; !ok {
		t.Fatalf("cache tier not written")
	}
	stored, err := sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := types.UnmarshalTurnState(stored.TurnContext)
	if err != nil {
		t.Fatalf("durable tier undecodable: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text != "answer" {
		t.Fatalf("durable tier content wrong: %+v", got.Messages)
	}
}

func TestTurnContext_SaveToleratesCacheFailure(t *testing.T) {
	store := newFakeTurnStore()
	store.failSet = true
	svc, sessionRepo, session := turnCtxFixture(t, store)
	ctx := context.Background()

	if err := svc.Save(ctx, session.ID, types.NewTurnState("sys")); err != nil {
		t.Fatalf("cache failure must not fail the save: %v", err)
	}
	stored, err := sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.TurnContext) == 0 {
		t.Fatalf("durable tier must still be written")
	}
}

func TestTurnContext_Evict(t *testing.T) {
	store := newFakeTurnStore()
	svc, _, session := turnCtxFixture(t, store)
	store.states[session.ID] = types.NewTurnState("sys")

	svc.Evict(context.Background(), session.ID)
	if _, ok := store.states[session.ID]; ok {
		t.Fatalf("evict must remove the cache entry")
	}
}
