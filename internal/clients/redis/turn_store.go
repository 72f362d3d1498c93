package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/types"
	"github.com/mockmate/mockmate-backend/internal/utils"
)

const turnKeyPrefix = "interview:turns:"

// TurnStore caches the current serialized conversation per session. It is
// an overwrite-on-exchange cache, not a log; the durable copy lives in the
// session row.
type TurnStore interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*types.TurnState, bool, error)
	Set(ctx context.Context, sessionID uuid.UUID, state *types.TurnState, ttl time.Duration) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
	Close() error
}

type turnStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewTurnStore(log *logger.Logger) (TurnStore, error) {
	serviceLog := log.With("service", "RedisTurnStore")

	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &turnStore{log: serviceLog, rdb: rdb}, nil
}

func turnKey(sessionID uuid.UUID) string {
	return turnKeyPrefix + sessionID.String()
}

func (s *turnStore) Get(ctx context.Context, sessionID uuid.UUID) (*types.TurnState, bool, error) {
	raw, err := s.rdb.Get(ctx, turnKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("turn store get: %w", err)
	}
	state, err := types.UnmarshalTurnState(raw)
	if err != nil {
		// A corrupt cache entry is recoverable: treat it as a miss so the
		// caller rebuilds from the durable snapshot.
		s.log.Warn("Dropping undecodable turn state", "session_id", sessionID, "error", err)
		_ = s.rdb.Del(ctx, turnKey(sessionID)).Err()
		return nil, false, nil
	}
	return state, true, nil
}

func (s *turnStore) Set(ctx context.Context, sessionID uuid.UUID, state *types.TurnState, ttl time.Duration) error {
	raw, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("turn store encode: %w", err)
	}
	if err := s.rdb.Set(ctx, turnKey(sessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("turn store set: %w", err)
	}
	return nil
}

func (s *turnStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.rdb.Del(ctx, turnKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("turn store delete: %w", err)
	}
	return nil
}

func (s *turnStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
