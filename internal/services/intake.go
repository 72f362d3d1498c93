package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/mockmate/mockmate-backend/internal/clients/gcp"
	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/types"
)

type SubmitInput struct {
	Kind          string
	Text          string
	Audio         []byte
	AudioMimeType string
}

type SubmitResult struct {
	Response       *types.Response        `json:"response"`
	Feedback       *types.Feedback        `json:"feedback"`
	Done           bool                   `json:"done"`
	NextQuestion   *types.Question        `json:"next_question,omitempty"`
	ClosingMessage string                 `json:"closing_message,omitempty"`
	Overall        *types.OverallFeedback `json:"overall_feedback,omitempty"`
}

// IntakeService runs the response pipeline: transcribe, persist, score,
// decide, write back conversational state, finalize when the decision is
// end. Steps run strictly in order; each one is a distinct failure point
// with its own fatality rule.
type IntakeService interface {
	Submit(ctx context.Context, session *types.Session, question *types.Question, input SubmitInput) (*SubmitResult, error)
}

type intakeService struct {
	log          *logger.Logger
	ai           gemini.Client
	transcriber  gcp.Transcriber
	bucket       gcp.Bucket
	responseRepo repos.ResponseRepo
	feedbackRepo repos.FeedbackRepo
	lifecycle    LifecycleService
	turnCtx      TurnContextService
	finalize     FinalizeService
}

func NewIntakeService(
	baseLog *logger.Logger,
	ai gemini.Client,
	transcriber gcp.Transcriber,
	bucket gcp.Bucket,
	responseRepo repos.ResponseRepo,
	feedbackRepo repos.FeedbackRepo,
	lifecycle LifecycleService,
	turnCtx TurnContextService,
	finalize FinalizeService,
) IntakeService {
	return &intakeService{
		log:          baseLog.With("service", "IntakeService"),
		ai:           ai,
		transcriber:  transcriber,
		bucket:       bucket,
		responseRepo: responseRepo,
		feedbackRepo: feedbackRepo,
		lifecycle:    lifecycle,
		turnCtx:      turnCtx,
		finalize:     finalize,
	}
}

func (s *intakeService) Submit(ctx context.Context, session *types.Session, question *types.Question, input SubmitInput) (*SubmitResult, error) {
	if !session.Live() {
		return nil, fmt.Errorf("%w: session is %s", ErrConflict, session.Status)
	}
	if existing, err := s.responseRepo.GetByQuestionID(ctx, nil, question.ID); err != nil {
		return nil, fmt.Errorf("%w: response lookup: %v", ErrUpstream, err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: question already answered", ErrConflict)
	}

	// 1. transcription — fatal; nothing is persisted for a failed attempt
	var transcript *gcp.TranscriptResult
	isAudio := input.Kind == types.ResponseKindAudio || len(input.Audio) > 0
	if isAudio {
		if s.transcriber == nil {
			return nil, fmt.Errorf("%w: transcription unavailable", ErrUpstream)
		}
		var err error
		transcript, err = s.transcriber.Transcribe(ctx, input.Audio, input.AudioMimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: transcription: %v", ErrUpstream, err)
		}
	}

	// 2. effective text
	text := strings.TrimSpace(input.Text)
	if transcript != nil {
		text = strings.TrimSpace(transcript.Transcript)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrValidation)
	}

	// 3. audio artifact upload — best-effort; the transcript already carries
	// the content, so a lost artifact does not abort the pipeline
	var fileURL *string
	if isAudio && s.bucket != nil {
		key := fmt.Sprintf("responses/%s/%s%s", session.ID, question.ID, extFromMime(input.AudioMimeType))
		if err := s.bucket.Upload(ctx, key, bytes.NewReader(input.Audio), input.AudioMimeType); err != nil {
			s.log.Warn("Audio upload failed, keeping transcript only", "session_id", session.ID, "question_id", question.ID, "error", err)
		} else {
			url := s.bucket.PublicURL(key)
			fileURL = &url
		}
	}

	// 4. persist the response — fatal
	response := &types.Response{
		QuestionID: question.ID,
		SessionID:  session.ID,
		Kind:       responseKind(isAudio),
		Content:    text,
		FileURL:    fileURL,
	}
	var metricsJSON json.RawMessage
	if transcript != nil {
		if transcript.DurationSec > 0 {
			d := transcript.DurationSec
			response.DurationSec = &d
		}
		if raw, err := json.Marshal(transcript); err == nil {
			metricsJSON = raw
			response.AudioMetrics = datatypes.JSON(raw)
		}
	}
	if _, err := s.responseRepo.Create(ctx, nil, response); err != nil {
		return nil, fmt.Errorf("%w: failed to save response: %v", ErrUpstream, err)
	}

	// 5. score feedback — fatal; the scored content is discarded on a
	// persistence failure, not retried in-process
	feedback, err := s.scoreFeedback(ctx, session, question, response, metricsJSON)
	if err != nil {
		return nil, err
	}

	// 6. continuation decision
	state := s.turnCtx.Load(ctx, session)
	state.Append(types.TurnRoleUser, text)

	decision, err := s.lifecycle.DecideNext(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Response: response, Feedback: feedback}

	// 7. write back the full conversational state — best-effort either way
	if decision.Continue {
		state.Append(types.TurnRoleAssistant, decision.Question.Text)
		if err := s.turnCtx.Save(ctx, session.ID, state); err != nil {
			s.log.Warn("Turn context writeback failed", "session_id", session.ID, "error", err)
		}
		result.NextQuestion = decision.Question
		return result, nil
	}

	// 8. the decision is end
	if err := s.turnCtx.Save(ctx, session.ID, state); err != nil {
		s.log.Warn("Turn context writeback failed before finalize", "session_id", session.ID, "error", err)
	}
	final, err := s.finalize.Finalize(ctx, session, state)
	if err != nil {
		return nil, err
	}
	result.Done = true
	result.ClosingMessage = final.ClosingMessage
	result.Overall = final.Overall
	return result, nil
}

func (s *intakeService) scoreFeedback(ctx context.Context, session *types.Session, question *types.Question, response *types.Response, metrics json.RawMessage) (*types.Feedback, error) {
	raw, err := s.ai.Generate(ctx, interviewSystemInstruction(session), feedbackPrompt(question, response.Content, metrics), true)
	if err != nil {
		return nil, fmt.Errorf("%w: feedback scoring: %v", ErrUpstream, err)
	}
	if err := validateAgainstSchema(feedbackSchema, raw); err != nil {
		return nil, err
	}
	var payload FeedbackPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode feedback payload: %v", ErrValidation, err)
	}

	feedback := &types.Feedback{
		ResponseID: response.ID,
		SessionID:  session.ID,
		Content:    payload.Content,
		Score:      payload.Score,
	}
	if _, err := s.feedbackRepo.Create(ctx, nil, feedback); err != nil {
		return nil, fmt.Errorf("%w: failed to save feedback: %v", ErrUpstream, err)
	}
	return feedback, nil
}

func responseKind(isAudio bool) string {
	if isAudio {
		return types.ResponseKindAudio
	}
	return types.ResponseKindText
}

func extFromMime(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "webm"):
		return ".webm"
	case strings.Contains(m, "wav"):
		return ".wav"
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return ".mp3"
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return ".ogg"
	case strings.Contains(m, "flac"):
		return ".flac"
	default:
		return ".bin"
	}
}
