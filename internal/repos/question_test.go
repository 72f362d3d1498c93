package repos

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Session{},
		&types.Question{},
		&types.Response{},
		&types.Feedback{},
		&types.OverallFeedback{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuestions(t *testing.T, repo QuestionRepo, sessionID uuid.UUID, positions ...int) []*types.Question {
	t.Helper()
	out := make([]*types.Question, 0, len(positions))
	for _, p := range positions {
		q, err := repo.Create(context.Background(), nil, &types.Question{
			SessionID: sessionID,
			Text:      fmt.Sprintf("question %d", p),
			Position:  p,
		})
		if err != nil {
			t.Fatalf("seed question %d: %v", p, err)
		}
		out = append(out, q)
	}
	return out
}

func TestQuestionRepo_GetBySessionID_OrdersByPosition(t *testing.T) {
	db := openTestDB(t)
	repo := NewQuestionRepo(db, logger.NewNop())
	sessionID := uuid.New()

	// inserted out of order on purpose
	seedQuestions(t, repo, sessionID, 3, 1, 2)

	questions, err := repo.GetBySessionID(context.Background(), nil, sessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 got %d", len(questions))
	}
	for i, q := range questions {
		if q.Position != i+1 {
			t.Fatalf("index %d: expected position %d got %d", i, i+1, q.Position)
		}
	}
}

func TestQuestionRepo_GetLatestBySessionID(t *testing.T) {
	db := openTestDB(t)
	repo := NewQuestionRepo(db, logger.NewNop())
	sessionID := uuid.New()

	latest, err := repo.GetLatestBySessionID(context.Background(), nil, sessionID)
	if err != nil {
		t.Fatalf("empty session: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil for empty session")
	}

	seedQuestions(t, repo, sessionID, 1, 2, 3)
	seedQuestions(t, repo, uuid.New(), 9)

	latest, err = repo.GetLatestBySessionID(context.Background(), nil, sessionID)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.Position != 3 {
		t.Fatalf("expected position 3, got %+v", latest)
	}
}

func TestQuestionRepo_CountBySessionID(t *testing.T) {
	db := openTestDB(t)
	repo := NewQuestionRepo(db, logger.NewNop())
	sessionID := uuid.New()

	seedQuestions(t, repo, sessionID, 1, 2)
	seedQuestions(t, repo, uuid.New(), 1)

	count, err := repo.CountBySessionID(context.Background(), nil, sessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 got %d", count)
	}
}

func TestQuestionRepo_GetByID_NilOnMiss(t *testing.T) {
	db := openTestDB(t)
	repo := NewQuestionRepo(db, logger.NewNop())

	q, err := repo.GetByID(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q != nil {
		t.Fatalf("expected nil for unknown id")
	}
}
