package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mockmate/mockmate-backend/internal/types"
)

func TestGenerateInitial_PersistsOpeningQuestion(t *testing.T) {
	ai := &fakeAI{chatReplies: []string{questionReply}}
	env := newTestEnv(t, ai, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusCreated)
	ctx := context.Background()

	question, err := env.lifecycle.GenerateInitial(ctx, session)
	if err != nil {
		t.Fatalf("generate initial: %v", err)
	}
	if question.Position != 1 {
		t.Fatalf("expected position 1 got %d", question.Position)
	}
	if question.IsFollowUp || question.ParentID != nil {
		t.Fatalf("opening question must not be a follow-up")
	}
	if question.Category != session.Category {
		t.Fatalf("category not defaulted from session: %q", question.Category)
	}

	stored, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if stored.Status != types.SessionStatusStarted {
		t.Fatalf("expected STARTED got %s", stored.Status)
	}
	if len(stored.TurnContext) == 0 {
		t.Fatalf("durable turn snapshot not written")
	}
	state, err := types.UnmarshalTurnState(stored.TurnContext)
	if err != nil {
		t.Fatalf("snapshot undecodable: %v", err)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("expected prompt and reply in snapshot, got %d messages", len(state.Messages))
	}
}

func TestGenerateInitial_ConflictWhenQuestionsExist(t *testing.T) {
	ai := &fakeAI{}
	env := newTestEnv(t, ai, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	env.seedQuestion(t, session, 1, "first question")

	_, err := env.lifecycle.GenerateInitial(context.Background(), session)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict got %v", err)
	}
	if ai.chatCalls != 0 {
		t.Fatalf("backend must not be called on conflict")
	}
}

func TestGenerateInitial_SchemaRejectionPersistsNothing(t *testing.T) {
	ai := &fakeAI{chatReplies: []string{`{"topic": "no text field"}`}}
	env := newTestEnv(t, ai, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusCreated)
	ctx := context.Background()

	_, err := env.lifecycle.GenerateInitial(ctx, session)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
	count, err := env.questionRepo.CountBySessionID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected output must persist nothing, found %d questions", count)
	}
}

func TestPushQuestion_FollowUpLinksExplicitParent(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	q1 := env.seedQuestion(t, session, 1, "first")
	env.seedQuestion(t, session, 2, "second")

	payload := &QuestionPayload{
		Text:       "can you expand on the first answer?",
		IsFollowUp: true,
		ParentID:   q1.ID.String(),
	}
	question, err := env.lifecycle.PushQuestion(context.Background(), session, payload)
	if err != nil {
		t.Fatalf("push question: %v", err)
	}
	if question.Position != 3 {
		t.Fatalf("expected position 3 got %d", question.Position)
	}
	if question.ParentID == nil || *question.ParentID != q1.ID {
		t.Fatalf("expected parent %s got %v", q1.ID, question.ParentID)
	}
	if question.FollowUpDepth != 1 {
		t.Fatalf("expected depth 1 got %d", question.FollowUpDepth)
	}
}

func TestPushQuestion_FollowUpFallsBackToLatest(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	env.seedQuestion(t, session, 1, "first")
	q2 := env.seedQuestion(t, session, 2, "second")

	payload := &QuestionPayload{Text: "why?", IsFollowUp: true}
	question, err := env.lifecycle.PushQuestion(context.Background(), session, payload)
	if err != nil {
		t.Fatalf("push question: %v", err)
	}
	if question.ParentID == nil || *question.ParentID != q2.ID {
		t.Fatalf("expected fallback parent %s got %v", q2.ID, question.ParentID)
	}
}

func TestPushQuestion_FollowUpIgnoresForeignParent(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	other := env.seedSession(t, types.SessionStatusStarted)
	foreign := env.seedQuestion(t, other, 1, "belongs elsewhere")
	q1 := env.seedQuestion(t, session, 1, "first")

	payload := &QuestionPayload{Text: "why?", IsFollowUp: true, ParentID: foreign.ID.String()}
	question, err := env.lifecycle.PushQuestion(context.Background(), session, payload)
	if err != nil {
		t.Fatalf("push question: %v", err)
	}
	if question.ParentID == nil || *question.ParentID != q1.ID {
		t.Fatalf("foreign parent must be ignored in favor of latest, got %v", question.ParentID)
	}
}

func TestPushQuestion_FollowUpWithoutPriorQuestion(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)

	payload := &QuestionPayload{Text: "why?", IsFollowUp: true}
	_, err := env.lifecycle.PushQuestion(context.Background(), session, payload)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
}
