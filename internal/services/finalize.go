package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
	"gorm.io/datatypes"
)

type FinalizeResult struct {
	ClosingMessage string                 `json:"closing_message"`
	Overall        *types.OverallFeedback `json:"overall_feedback"`
}

// FinalizeService closes out a session: a closing message and the overall
// assessment from the conversation, then the overall-feedback insert and
// the COMPLETED transition in a single transaction.
type FinalizeService interface {
	Finalize(ctx context.Context, session *types.Session, state *types.TurnState) (*FinalizeResult, error)
	Abandon(ctx context.Context, session *types.Session) error
}

type finalizeService struct {
	db          *gorm.DB
	log         *logger.Logger
	ai          gemini.Client
	sessionRepo repos.SessionRepo
	overallRepo repos.OverallFeedbackRepo
	turnCtx     TurnContextService
}

func NewFinalizeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai gemini.Client,
	sessionRepo repos.SessionRepo,
	overallRepo repos.OverallFeedbackRepo,
	turnCtx TurnContextService,
) FinalizeService {
	return &finalizeService{
		db:          db,
		log:         baseLog.With("service", "FinalizeService"),
		ai:          ai,
		sessionRepo: sessionRepo,
		overallRepo: overallRepo,
		turnCtx:     turnCtx,
	}
}

func (s *finalizeService) Finalize(ctx context.Context, session *types.Session, state *types.TurnState) (*FinalizeResult, error) {
	if session.Status == types.SessionStatusCompleted {
		return nil, fmt.Errorf("%w: session already completed", ErrConflict)
	}

	// A prior attempt may have created the overall feedback and then failed
	// on the status write. Retry just the transition in that case.
	if existing, err := s.overallRepo.GetBySessionID(ctx, nil, session.ID); err == nil && existing != nil {
		if err := s.sessionRepo.SetStatus(ctx, nil, session.ID, types.SessionStatusCompleted); err != nil {
			return nil, fmt.Errorf("%w: complete session: %v", ErrUpstream, err)
		}
		session.Status = types.SessionStatusCompleted
		s.turnCtx.Evict(ctx, session.ID)
		return &FinalizeResult{Overall: existing}, nil
	}

	conv, err := ResumeConversation(state, s.ai)
	if err != nil {
		return nil, err
	}

	closing, err := conv.SendMessage(ctx, closingPrompt(), false)
	if err != nil {
		return nil, err
	}

	rawOverall, err := conv.SendMessage(ctx, overallFeedbackPrompt(), true)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(overallFeedbackSchema, rawOverall); err != nil {
		return nil, err
	}
	var payload OverallFeedbackPayload
	if err := json.Unmarshal([]byte(rawOverall), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode overall feedback: %v", ErrValidation, err)
	}

	overall := &types.OverallFeedback{
		SessionID:      session.ID,
		OverallScore:   payload.OverallScore,
		Summary:        payload.Summary,
		Recommendation: payload.Recommendation,
		Strengths:      mustJSONList(payload.Strengths),
		Weaknesses:     mustJSONList(payload.Weaknesses),
		Improvements:   mustJSONList(payload.Improvements),
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.overallRepo.Create(ctx, tx, overall); err != nil {
			return err
		}
		return s.sessionRepo.SetStatus(ctx, tx, session.ID, types.SessionStatusCompleted)
	}); err != nil {
		return nil, fmt.Errorf("%w: finalize session: %v", ErrUpstream, err)
	}
	session.Status = types.SessionStatusCompleted

	if err := s.turnCtx.Save(ctx, session.ID, conv.State()); err != nil {
		s.log.Warn("Final turn snapshot write failed", "session_id", session.ID, "error", err)
	}
	s.turnCtx.Evict(ctx, session.ID)

	return &FinalizeResult{ClosingMessage: closing, Overall: overall}, nil
}

// Abandon marks a session the candidate walked away from before answering
// anything. No overall feedback is produced.
func (s *finalizeService) Abandon(ctx context.Context, session *types.Session) error {
	if session.Status == types.SessionStatusCompleted {
		return fmt.Errorf("%w: session already completed", ErrConflict)
	}
	if err := s.sessionRepo.SetStatus(ctx, nil, session.ID, types.SessionStatusAbandoned); err != nil {
		return fmt.Errorf("%w: abandon session: %v", ErrUpstream, err)
	}
	session.Status = types.SessionStatusAbandoned
	s.turnCtx.Evict(ctx, session.ID)
	return nil
}

func mustJSONList(items []string) datatypes.JSON {
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}
