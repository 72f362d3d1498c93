package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mockmate/mockmate-backend/internal/types"
)

func TestFinalize_WritesOverallAndCompletesTogether(t *testing.T) {
	ai := &fakeAI{chatReplies: []string{closingReply, overallReply}}
	env := newTestEnv(t, ai, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	ctx := context.Background()

	state := types.NewTurnState("sys")
	state.Append(types.TurnRoleUser, "final answer")

	result, err := env.finalize.Finalize(ctx, session, state)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.ClosingMessage != closingReply {
		t.Fatalf("unexpected closing message %q", result.ClosingMessage)
	}
	if result.Overall == nil || result.Overall.OverallScore != 74 {
		t.Fatalf("unexpected overall: %+v", result.Overall)
	}

	stored, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != types.SessionStatusCompleted {
		t.Fatalf("expected COMPLETED got %s", stored.Status)
	}
	overall, err := env.overallRepo.GetBySessionID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("overall lookup: %v", err)
	}
	if overall == nil {
		t.Fatalf("overall row missing")
	}
}

func TestFinalize_AlreadyCompletedConflicts(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusCompleted)

	_, err := env.finalize.Finalize(context.Background(), session, types.NewTurnState("sys"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict got %v", err)
	}
}

func TestFinalize_RetriesStatusWriteWhenOverallExists(t *testing.T) {
	ai := &fakeAI{}
	env := newTestEnv(t, ai, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	ctx := context.Background()

	existing := &types.OverallFeedback{
		SessionID:      session.ID,
		OverallScore:   60,
		Summary:        "written by a prior attempt",
		Recommendation: types.RecommendationLeanHire,
	}
	if _, err := env.overallRepo.Create(ctx, nil, existing); err != nil {
		t.Fatalf("seed overall: %v", err)
	}

	result, err := env.finalize.Finalize(ctx, session, types.NewTurnState("sys"))
	if err != nil {
		t.Fatalf("finalize retry: %v", err)
	}
	if result.Overall == nil || result.Overall.OverallScore != 60 {
		t.Fatalf("expected the prior attempt's overall, got %+v", result.Overall)
	}
	if ai.chatCalls != 0 {
		t.Fatalf("retry path must not call the model, saw %d calls", ai.chatCalls)
	}

	stored, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != types.SessionStatusCompleted {
		t.Fatalf("expected COMPLETED got %s", stored.Status)
	}
}

func TestAbandon_MarksSessionWithoutOverall(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, nil, nil, DefaultMaxQuestions)
	session := env.seedSession(t, types.SessionStatusStarted)
	ctx := context.Background()

	if err := env.finalize.Abandon(ctx, session); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	stored, err := env.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != types.SessionStatusAbandoned {
		t.Fatalf("expected ABANDONED got %s", stored.Status)
	}
	overall, err := env.overallRepo.GetBySessionID(ctx, nil, session.ID)
	if err != nil {
		t.Fatalf("overall lookup: %v", err)
	}
	if overall != nil {
		t.Fatalf("abandoned session must have no overall feedback")
	}
}
