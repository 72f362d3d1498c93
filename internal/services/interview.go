package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

type CreateSessionInput struct {
	UserID         uuid.UUID `json:"user_id"`
	Category       string    `json:"category"`
	Difficulty     string    `json:"difficulty"`
	RoleTitle      string    `json:"role_title"`
	FocusAreas     []string  `json:"focus_areas"`
	ResumeSnapshot string    `json:"resume_snapshot"`
	JobDescription string    `json:"job_description"`
}

type NextQuestionResult struct {
	Question       *types.Question        `json:"question,omitempty"`
	Generated      bool                   `json:"generated"`
	Done           bool                   `json:"done"`
	ClosingMessage string                 `json:"closing_message,omitempty"`
	Overall        *types.OverallFeedback `json:"overall_feedback,omitempty"`
}

type EndResult struct {
	Status         string                 `json:"status"`
	Abandoned      bool                   `json:"abandoned"`
	ClosingMessage string                 `json:"closing_message,omitempty"`
	Overall        *types.OverallFeedback `json:"overall_feedback,omitempty"`
}

// InterviewService is the caller-facing surface: create, fetch the current
// question, submit an answer, end early. Every operation returns either a
// payload or a tagged error.
type InterviewService interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*types.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.Session, *types.OverallFeedback, error)
	GetOrInitFirstQuestion(ctx context.Context, sessionID uuid.UUID) (*NextQuestionResult, error)
	SubmitResponse(ctx context.Context, sessionID, questionID uuid.UUID, input SubmitInput) (*SubmitResult, error)
	EndSessionEarly(ctx context.Context, sessionID uuid.UUID) (*EndResult, error)
}

type interviewService struct {
	log          *logger.Logger
	sessionRepo  repos.SessionRepo
	questionRepo repos.QuestionRepo
	responseRepo repos.ResponseRepo
	overallRepo  repos.OverallFeedbackRepo
	lifecycle    LifecycleService
	intake       IntakeService
	turnCtx      TurnContextService
	finalize     FinalizeService
}

func NewInterviewService(
	baseLog *logger.Logger,
	sessionRepo repos.SessionRepo,
	questionRepo repos.QuestionRepo,
	responseRepo repos.ResponseRepo,
	overallRepo repos.OverallFeedbackRepo,
	lifecycle LifecycleService,
	intake IntakeService,
	turnCtx TurnContextService,
	finalize FinalizeService,
) InterviewService {
	return &interviewService{
		log:          baseLog.With("service", "InterviewService"),
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		overallRepo:  overallRepo,
		lifecycle:    lifecycle,
		intake:       intake,
		turnCtx:      turnCtx,
		finalize:     finalize,
	}
}

var validCategories = map[string]bool{
	types.SessionCategoryTechnical:   true,
	types.SessionCategoryBehavioral:  true,
	types.SessionCategorySituational: true,
}

var validDifficulties = map[string]bool{
	"easy": true, "medium": true, "hard": true,
}

func (s *interviewService) CreateSession(ctx context.Context, input CreateSessionInput) (*types.Session, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id required", ErrValidation)
	}
	if !validCategories[input.Category] {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	if !validDifficulties[input.Difficulty] {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrValidation, input.Difficulty)
	}

	session := &types.Session{
		UserID:         input.UserID,
		Status:         types.SessionStatusCreated,
		Category:       input.Category,
		Difficulty:     input.Difficulty,
		RoleTitle:      input.RoleTitle,
		ResumeSnapshot: input.ResumeSnapshot,
		JobDescription: input.JobDescription,
	}
	if len(input.FocusAreas) > 0 {
		raw, _ := json.Marshal(input.FocusAreas)
		session.FocusAreas = datatypes.JSON(raw)
	}

	created, err := s.sessionRepo.Create(ctx, nil, session)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrUpstream, err)
	}
	return created, nil
}

func (s *interviewService) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.Session, *types.OverallFeedback, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	var overall *types.OverallFeedback
	if session.Status == types.SessionStatusCompleted {
		overall, err = s.overallRepo.GetBySessionID(ctx, nil, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: overall feedback lookup: %v", ErrUpstream, err)
		}
	}
	return session, overall, nil
}

// GetOrInitFirstQuestion is idempotent: a session that already has an
// unanswered question gets that question back, never a second initial one.
// Only when every question is answered does it consult the continuation
// policy for the next.
func (s *interviewService) GetOrInitFirstQuestion(ctx context.Context, sessionID uuid.UUID) (*NextQuestionResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Live() {
		return nil, fmt.Errorf("%w: session is %s", ErrConflict, session.Status)
	}

	questions, err := s.questionRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: questions lookup: %v", ErrUpstream, err)
	}

	if len(questions) == 0 {
		question, err := s.lifecycle.GenerateInitial(ctx, session)
		if err != nil {
			return nil, err
		}
		return &NextQuestionResult{Question: question, Generated: true}, nil
	}

	responses, err := s.responseRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: responses lookup: %v", ErrUpstream, err)
	}
	answered := make(map[uuid.UUID]bool, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = true
	}
	for _, q := range questions {
		if !answered[q.ID] {
			return &NextQuestionResult{Question: q}, nil
		}
	}

	// every question is answered: ask the policy for the next move
	decision, err := s.lifecycle.DecideNext(ctx, session)
	if err != nil {
		return nil, err
	}
	if decision.Continue {
		state := s.turnCtx.Load(ctx, session)
		state.Append(types.TurnRoleAssistant, decision.Question.Text)
		if err := s.turnCtx.Save(ctx, sessionID, state); err != nil {
			s.log.Warn("Turn context writeback failed", "session_id", sessionID, "error", err)
		}
		return &NextQuestionResult{Question: decision.Question, Generated: true}, nil
	}

	final, err := s.finalize.Finalize(ctx, session, s.turnCtx.Load(ctx, session))
	if err != nil {
		return nil, err
	}
	return &NextQuestionResult{Done: true, ClosingMessage: final.ClosingMessage, Overall: final.Overall}, nil
}

func (s *interviewService) SubmitResponse(ctx context.Context, sessionID, questionID uuid.UUID, input SubmitInput) (*SubmitResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	question, err := s.questionRepo.GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, fmt.Errorf("%w: question lookup: %v", ErrUpstream, err)
	}
	if question == nil || question.SessionID != sessionID {
		return nil, fmt.Errorf("%w: question not found in session", ErrNotFound)
	}
	return s.intake.Submit(ctx, session, question, input)
}

func (s *interviewService) EndSessionEarly(ctx context.Context, sessionID uuid.UUID) (*EndResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Live() {
		return nil, fmt.Errorf("%w: session is %s", ErrConflict, session.Status)
	}

	count, err := s.responseRepo.CountBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: responses lookup: %v", ErrUpstream, err)
	}
	if count == 0 {
		if err := s.finalize.Abandon(ctx, session); err != nil {
			return nil, err
		}
		return &EndResult{Status: session.Status, Abandoned: true}, nil
	}

	final, err := s.finalize.Finalize(ctx, session, s.turnCtx.Load(ctx, session))
	if err != nil {
		return nil, err
	}
	return &EndResult{
		Status:         session.Status,
		ClosingMessage: final.ClosingMessage,
		Overall:        final.Overall,
	}, nil
}

func (s *interviewService) loadSession(ctx context.Context, sessionID uuid.UUID) (*types.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", ErrUpstream, err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session not found", ErrNotFound)
	}
	return session, nil
}
