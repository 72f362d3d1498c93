package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

const DefaultMaxQuestions = 15

// ContinuationService decides, from the persisted transcript, whether the
// interview goes on. The question-count ceiling is enforced here in code,
// not delegated to the model: once maxQuestions answers exist the verdict
// is end, whatever the backend might have said.
type ContinuationService interface {
	Decide(ctx context.Context, session *types.Session) (*Verdict, error)
}

type continuationService struct {
	log          *logger.Logger
	ai           gemini.Client
	questionRepo repos.QuestionRepo
	responseRepo repos.ResponseRepo
	feedbackRepo repos.FeedbackRepo
	maxQuestions int
}

func NewContinuationService(
	baseLog *logger.Logger,
	ai gemini.Client,
	questionRepo repos.QuestionRepo,
	responseRepo repos.ResponseRepo,
	feedbackRepo repos.FeedbackRepo,
	maxQuestions int,
) ContinuationService {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	return &continuationService{
		log:          baseLog.With("service", "ContinuationService"),
		ai:           ai,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		feedbackRepo: feedbackRepo,
		maxQuestions: maxQuestions,
	}
}

func (s *continuationService) Decide(ctx context.Context, session *types.Session) (*Verdict, error) {
	questions, responses, feedbacks, err := s.loadTranscript(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load transcript: %v", ErrUpstream, err)
	}

	respByQuestion := make(map[uuid.UUID]*types.Response, len(responses))
	for _, r := range responses {
		respByQuestion[r.QuestionID] = r
	}
	fbByResponse := make(map[uuid.UUID]*types.Feedback, len(feedbacks))
	for _, f := range feedbacks {
		fbByResponse[f.ResponseID] = f
	}

	answered := 0
	for _, q := range questions {
		if _, ok := respByQuestion[q.ID]; ok {
			answered++
		}
	}

	if answered >= s.maxQuestions {
		s.log.Info("Question ceiling reached, ending without model call", "session_id", session.ID, "answered", answered)
		return &Verdict{
			ShouldContinue: false,
			Reasoning:      fmt.Sprintf("question limit of %d reached", s.maxQuestions),
		}, nil
	}

	history := buildDecisionHistory(session, questions, respByQuestion, fbByResponse)
	instruction := continuationInstruction(session, len(questions), s.maxQuestions)

	raw, err := s.ai.Chat(ctx, instruction, history, decisionRequestPrompt(), true)
	if err != nil {
		return nil, fmt.Errorf("%w: continuation decision: %v", ErrUpstream, err)
	}
	if err := validateAgainstSchema(verdictSchema, raw); err != nil {
		return nil, err
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("%w: decode verdict: %v", ErrValidation, err)
	}
	if verdict.ShouldContinue && verdict.NextQuestion == nil {
		return nil, fmt.Errorf("%w: verdict says continue but carries no next question", ErrValidation)
	}
	return &verdict, nil
}

func (s *continuationService) loadTranscript(ctx context.Context, sessionID uuid.UUID) ([]*types.Question, []*types.Response, []*types.Feedback, error) {
	questions, err := s.questionRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}

	var responses []*types.Response
	var feedbacks []*types.Feedback
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		responses, err = s.responseRepo.GetBySessionID(gctx, nil, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		feedbacks, err = s.feedbackRepo.GetBySessionID(gctx, nil, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return questions, responses, feedbacks, nil
}

// buildDecisionHistory reconstructs a linear conversation from relational
// rows: context message, then one question/response/feedback triple per
// answered question, in creation order.
func buildDecisionHistory(
	session *types.Session,
	questions []*types.Question,
	respByQuestion map[uuid.UUID]*types.Response,
	fbByResponse map[uuid.UUID]*types.Feedback,
) []types.TurnMessage {
	history := []types.TurnMessage{
		{Role: types.TurnRoleUser, Text: transcriptContext(session)},
	}
	for _, q := range questions {
		resp, ok := respByQuestion[q.ID]
		if !ok {
			continue
		}
		history = append(history,
			types.TurnMessage{Role: types.TurnRoleAssistant, Text: fmt.Sprintf("Question %d (%s): %s", q.Position, q.Topic, q.Text)},
			types.TurnMessage{Role: types.TurnRoleUser, Text: resp.Content},
		)
		if fb, ok := fbByResponse[resp.ID]; ok {
			history = append(history, types.TurnMessage{
				Role: types.TurnRoleAssistant,
				Text: fmt.Sprintf("Feedback (score %d/100): %s", fb.Score, fb.Content),
			})
		}
	}
	return history
}

func transcriptContext(session *types.Session) string {
	var b strings.Builder
	b.WriteString("Interview context: ")
	b.WriteString(session.Difficulty)
	b.WriteString(" ")
	b.WriteString(session.Category)
	b.WriteString(" interview")
	if session.RoleTitle != "" {
		b.WriteString(" for ")
		b.WriteString(session.RoleTitle)
	}
	b.WriteString(". Focus areas: ")
	b.WriteString(focusAreaList(session))
	b.WriteString(". The transcript of asked questions, candidate answers and per-answer feedback follows.")
	return b.String()
}
