package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

// NextDecision is what DecideNext hands back to the pipeline: either a
// freshly persisted question, or the verdict that the session should be
// finalized.
type NextDecision struct {
	Continue bool
	Question *types.Question
	Verdict  *Verdict
}

type LifecycleService interface {
	GenerateInitial(ctx context.Context, session *types.Session) (*types.Question, error)
	PushQuestion(ctx context.Context, session *types.Session, payload *QuestionPayload) (*types.Question, error)
	DecideNext(ctx context.Context, session *types.Session) (*NextDecision, error)
}

type lifecycleService struct {
	log          *logger.Logger
	ai           gemini.Client
	sessionRepo  repos.SessionRepo
	questionRepo repos.QuestionRepo
	continuation ContinuationService
	turnCtx      TurnContextService
}

func NewLifecycleService(
	baseLog *logger.Logger,
	ai gemini.Client,
	sessionRepo repos.SessionRepo,
	questionRepo repos.QuestionRepo,
	continuation ContinuationService,
	turnCtx TurnContextService,
) LifecycleService {
	return &lifecycleService{
		log:          baseLog.With("service", "LifecycleService"),
		ai:           ai,
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		continuation: continuation,
		turnCtx:      turnCtx,
	}
}

// GenerateInitial primes the conversation and persists the opening question.
// Requires that the session has no questions yet; validation failure on the
// model output persists nothing.
func (s *lifecycleService) GenerateInitial(ctx context.Context, session *types.Session) (*types.Question, error) {
	count, err := s.questionRepo.CountBySessionID(ctx, nil, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: count questions: %v", ErrUpstream, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: session already has questions", ErrConflict)
	}

	conv, err := ResumeConversation(s.turnCtx.Load(ctx, session), s.ai)
	if err != nil {
		return nil, err
	}
	raw, err := conv.SendMessage(ctx, initialQuestionPrompt(), true)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(questionSchema, raw); err != nil {
		return nil, err
	}
	var payload QuestionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode question payload: %v", ErrValidation, err)
	}
	payload.IsFollowUp = false
	payload.ParentID = ""

	question, err := s.persistQuestion(ctx, session, &payload)
	if err != nil {
		return nil, err
	}

	if session.Status == types.SessionStatusCreated {
		if err := s.sessionRepo.SetStatus(ctx, nil, session.ID, types.SessionStatusStarted); err != nil {
			s.log.Warn("Failed to mark session STARTED", "session_id", session.ID, "error", err)
		} else {
			session.Status = types.SessionStatusStarted
		}
	}

	if err := s.turnCtx.Save(ctx, session.ID, conv.State()); err != nil {
		s.log.Warn("Turn context save failed after initial question", "session_id", session.ID, "error", err)
	}
	return question, nil
}

// PushQuestion persists a question from a decision payload. Follow-ups link
// to the parent the model named; when it named none, the most recently
// created question in the session is used. That recency lookup is a
// compatibility shim and races under concurrent submits for one session.
func (s *lifecycleService) PushQuestion(ctx context.Context, session *types.Session, payload *QuestionPayload) (*types.Question, error) {
	if payload == nil || payload.Text == "" {
		return nil, fmt.Errorf("%w: empty question payload", ErrValidation)
	}

	latest, err := s.questionRepo.GetLatestBySessionID(ctx, nil, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: latest question lookup: %v", ErrUpstream, err)
	}

	question := payloadToQuestion(session, payload)
	if latest != nil {
		question.Position = latest.Position + 1
	}

	if payload.IsFollowUp {
		parent := latest
		if payload.ParentID != "" {
			if id, err := uuid.Parse(payload.ParentID); err == nil {
				if explicit, err := s.questionRepo.GetByID(ctx, nil, id); err == nil && explicit != nil && explicit.SessionID == session.ID {
					parent = explicit
				}
			}
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: follow-up question without any prior question", ErrValidation)
		}
		question.ParentID = &parent.ID
		question.FollowUpDepth = parent.FollowUpDepth + 1
	}

	created, err := s.questionRepo.Create(ctx, nil, question)
	if err != nil {
		return nil, fmt.Errorf("%w: persist question: %v", ErrUpstream, err)
	}
	return created, nil
}

func (s *lifecycleService) DecideNext(ctx context.Context, session *types.Session) (*NextDecision, error) {
	verdict, err := s.continuation.Decide(ctx, session)
	if err != nil {
		return nil, err
	}
	if !verdict.ShouldContinue {
		return &NextDecision{Continue: false, Verdict: verdict}, nil
	}
	question, err := s.PushQuestion(ctx, session, verdict.NextQuestion)
	if err != nil {
		return nil, err
	}
	return &NextDecision{Continue: true, Question: question, Verdict: verdict}, nil
}

func (s *lifecycleService) persistQuestion(ctx context.Context, session *types.Session, payload *QuestionPayload) (*types.Question, error) {
	question := payloadToQuestion(session, payload)
	created, err := s.questionRepo.Create(ctx, nil, question)
	if err != nil {
		return nil, fmt.Errorf("%w: persist question: %v", ErrUpstream, err)
	}
	return created, nil
}

func payloadToQuestion(session *types.Session, payload *QuestionPayload) *types.Question {
	q := &types.Question{
		SessionID:  session.ID,
		Text:       payload.Text,
		Category:   payload.Category,
		Difficulty: payload.Difficulty,
		Topic:      payload.Topic,
		Position:   1,
		IsFollowUp: payload.IsFollowUp,
	}
	if q.Category == "" {
		q.Category = session.Category
	}
	if q.Difficulty == "" {
		q.Difficulty = session.Difficulty
	}
	if len(payload.AIContext) > 0 {
		q.AIContext = datatypes.JSON(payload.AIContext)
	}
	if len(payload.EvaluationCriteria) > 0 {
		q.EvaluationCriteria = datatypes.JSON(payload.EvaluationCriteria)
	}
	if len(payload.FollowUpTriggers) > 0 {
		q.FollowUpTriggers = datatypes.JSON(payload.FollowUpTriggers)
	}
	return q
}
