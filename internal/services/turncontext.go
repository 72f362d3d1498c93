package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/mockmate/mockmate-backend/internal/clients/redis"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

// TurnContextService is the read-through layer over the two storage tiers
// of conversational state: the redis turn store (fast, expiring) and the
// session row's turn_context column (durable). On a cache miss the state is
// rebuilt from the durable snapshot, and a fresh state is minted from the
// session's static instructions when neither tier has one.
type TurnContextService interface {
	Load(ctx context.Context, session *types.Session) *types.TurnState
	Save(ctx context.Context, sessionID uuid.UUID, state *types.TurnState) error
	Evict(ctx context.Context, sessionID uuid.UUID)
}

type turnContextService struct {
	log         *logger.Logger
	store       redisclient.TurnStore
	sessionRepo repos.SessionRepo
	ttl         time.Duration
}

func NewTurnContextService(baseLog *logger.Logger, store redisclient.TurnStore, sessionRepo repos.SessionRepo, ttl time.Duration) TurnContextService {
	return &turnContextService{
		log:         baseLog.With("service", "TurnContextService"),
		store:       store,
		sessionRepo: sessionRepo,
		ttl:         ttl,
	}
}

func (s *turnContextService) Load(ctx context.Context, session *types.Session) *types.TurnState {
	if s.store != nil {
		state, ok, err := s.store.Get(ctx, session.ID)
		if err != nil {
			// degraded but correct: fall through to the durable snapshot
			s.log.Warn("Turn store read failed, falling back to durable snapshot", "session_id", session.ID, "error", err)
		} else if ok {
			return state
		}
	}

	if len(session.TurnContext) > 0 {
		state, err := types.UnmarshalTurnState(session.TurnContext)
		if err != nil {
			s.log.Warn("Durable turn snapshot undecodable, starting fresh", "session_id", session.ID, "error", err)
		} else {
			return state
		}
	}

	return types.NewTurnState(interviewSystemInstruction(session))
}

// Save overwrites both tiers with the full current state. The cache write is
// best-effort; the durable write's error is returned so callers choose
// whether it is fatal for them.
func (s *turnContextService) Save(ctx context.Context, sessionID uuid.UUID, state *types.TurnState) error {
	if s.store != nil {
		if err := s.store.Set(ctx, sessionID, state, s.ttl); err != nil {
			s.log.Warn("Turn store write failed, continuing uncached", "session_id", sessionID, "error", err)
		}
	}

	raw, err := state.Marshal()
	if err != nil {
		return err
	}
	return s.sessionRepo.SaveTurnContext(ctx, nil, sessionID, raw)
}

func (s *turnContextService) Evict(ctx context.Context, sessionID uuid.UUID) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.log.Warn("Turn store evict failed", "session_id", sessionID, "error", err)
	}
}
