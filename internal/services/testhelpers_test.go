package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mockmate/mockmate-backend/internal/clients/gcp"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
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

// fakeAI replays scripted replies in order. An exhausted script is an error,
// so a test also proves which calls were NOT made.
type fakeAI struct {
	mu              sync.Mutex
	chatReplies     []string
	generateReplies []string
	chatCalls       int
	generateCalls   int
	err             error
}

func (f *fakeAI) Generate(ctx context.Context, systemInstruction, prompt string, jsonOutput bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.generateReplies) == 0 {
		return "", errors.New("no scripted generate reply")
	}
	reply := f.generateReplies[0]
	f.generateReplies = f.generateReplies[1:]
	return reply, nil
}

func (f *fakeAI) Chat(ctx context.Context, systemInstruction string, history []types.TurnMessage, message string, jsonOutput bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.chatReplies) == 0 {
		return "", errors.New("no scripted chat reply")
	}
	reply := f.chatReplies[0]
	f.chatReplies = f.chatReplies[1:]
	return reply, nil
}

func (f *fakeAI) Close() error { return nil }

type fakeTranscriber struct {
	result *gcp.TranscriptResult
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (*gcp.TranscriptResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeTranscriber) Close() error { return nil }

type fakeBucket struct {
	failUpload bool
	uploaded   []string
}

func (f *fakeBucket) Upload(ctx context.Context, key string, file io.Reader, contentType string) error {
	if f.failUpload {
		return errors.New("bucket unavailable")
	}
	f.uploaded = append(f.uploaded, key)
	return nil
}

func (f *fakeBucket) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeBucket) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (f *fakeBucket) PublicURL(key string) string {
	return "https://storage.test/" + key
}

type testEnv struct {
	db           *gorm.DB
	ai           *fakeAI
	sessionRepo  repos.SessionRepo
	questionRepo repos.QuestionRepo
	responseRepo repos.ResponseRepo
	feedbackRepo repos.FeedbackRepo
	overallRepo  repos.OverallFeedbackRepo
	turnCtx      TurnContextService
	continuation ContinuationService
	lifecycle    LifecycleService
	finalize     FinalizeService
	intake       IntakeService
	interview    InterviewService
}

func newTestEnv(t *testing.T, ai *fakeAI, transcriber gcp.Transcriber, bucket gcp.Bucket, maxQuestions int) *testEnv {
	t.Helper()
	db := openTestDB(t)
	log := logger.NewNop()

	sessionRepo := repos.NewSessionRepo(db, log)
	questionRepo := repos.NewQuestionRepo(db, log)
	responseRepo := repos.NewResponseRepo(db, log)
	feedbackRepo := repos.NewFeedbackRepo(db, log)
	overallRepo := repos.NewOverallFeedbackRepo(db, log)

	turnCtx := NewTurnContextService(log, nil, sessionRepo, time.Minute)
	continuation := NewContinuationService(log, ai, questionRepo, responseRepo, feedbackRepo, maxQuestions)
	lifecycle := NewLifecycleService(log, ai, sessionRepo, questionRepo, continuation, turnCtx)
	finalize := NewFinalizeService(db, log, ai, sessionRepo, overallRepo, turnCtx)
	intake := NewIntakeService(log, ai, transcriber, bucket, responseRepo, feedbackRepo, lifecycle, turnCtx, finalize)
	interview := NewInterviewService(log, sessionRepo, questionRepo, responseRepo, overallRepo, lifecycle, intake, turnCtx, finalize)

	return &testEnv{
		db:           db,
		ai:           ai,
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		feedbackRepo: feedbackRepo,
		overallRepo:  overallRepo,
		turnCtx:      turnCtx,
		continuation: continuation,
		lifecycle:    lifecycle,
		finalize:     finalize,
		intake:       intake,
		interview:    interview,
	}
}

func (e *testEnv) seedSession(t *testing.T, status string) *types.Session {
	t.Helper()
	session := &types.Session{
		UserID:     uuid.New(),
		Status:     status,
		Category:   types.SessionCategoryBehavioral,
		Difficulty: "medium",
		RoleTitle:  "Backend Engineer",
	}
	created, err := e.sessionRepo.Create(context.Background(), nil, session)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return created
}

func (e *testEnv) seedQuestion(t *testing.T, session *types.Session, position int, text string) *types.Question {
	t.Helper()
	question := &types.Question{
		SessionID: session.ID,
		Text:      text,
		Category:  session.Category,
		Topic:     "teamwork",
		Position:  position,
	}
	created, err := e.questionRepo.Create(context.Background(), nil, question)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return created
}

func (e *testEnv) seedResponse(t *testing.T, session *types.Session, question *types.Question, content string) *types.Response {
	t.Helper()
	response := &types.Response{
		QuestionID: question.ID,
		SessionID:  session.ID,
		Kind:       types.ResponseKindText,
		Content:    content,
	}
	created, err := e.responseRepo.Create(context.Background(), nil, response)
	if err != nil {
		t.Fatalf("seed response: %v", err)
	}
	return created
}

const (
	questionReply = `{"text": "Tell me about a conflict you resolved.", "topic": "teamwork", "is_follow_up": false}`
	feedbackReply = `{"content": "Clear answer with a concrete example.", "score": 82}`
	verdictContinueReply = `{
		"should_continue": true,
		"reasoning": "coverage is still thin",
		"next_question": {"text": "What would you do differently today?", "topic": "teamwork", "is_follow_up": true}
	}`
	verdictEndReply = `{"should_continue": false, "reasoning": "enough signal collected"}`
	closingReply    = "Thanks for your time today, we are done."
	overallReply    = `{
		"overall_score": 74,
		"summary": "Solid communicator with room to grow on system design depth.",
		"recommendation": "hire",
		"strengths": ["clear communication", "ownership", "calm under pressure"],
		"weaknesses": ["shallow on tradeoffs", "few metrics", "short answers"],
		"improvements": ["quantify impact", "discuss alternatives", "expand on design reasoning"]
	}`
)
