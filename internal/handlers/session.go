package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/services"
	"github.com/mockmate/mockmate-backend/internal/types"
)

// 25MB is plenty for a single spoken answer.
const maxAudioBytes = 25 << 20

type SessionHandler struct {
	log          *logger.Logger
	interviewSvc services.InterviewService
}

func NewSessionHandler(log *logger.Logger, interviewSvc services.InterviewService) *SessionHandler {
	return &SessionHandler{
		log:          log.With("handler", "SessionHandler"),
		interviewSvc: interviewSvc,
	}
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var input services.CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	session, err := h.interviewSvc.CreateSession(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	session, overall, err := h.interviewSvc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session, "overall_feedback": overall})
}

// GET /api/sessions/:id/question
// Idempotent: returns the current unanswered question, generating the
// initial one only when the session has none.
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.interviewSvc.GetOrInitFirstQuestion(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/sessions/:id/responses
// Multipart form: question_id, kind (text|audio), text, audio (file).
func (h *SessionHandler) SubmitResponse(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.PostForm("question_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid question_id"))
		return
	}

	input := services.SubmitInput{
		Kind: c.DefaultPostForm("kind", types.ResponseKindText),
		Text: c.PostForm("text"),
	}

	if fh, err := c.FormFile("audio"); err == nil && fh != nil {
		if fh.Size > maxAudioBytes {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("audio file too large"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("could not read audio upload"))
			return
		}
		defer f.Close()
		audio, err := io.ReadAll(f)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("could not read audio upload"))
			return
		}
		input.Kind = types.ResponseKindAudio
		input.Audio = audio
		input.AudioMimeType = fh.Header.Get("Content-Type")
	}

	result, err := h.interviewSvc.SubmitResponse(c.Request.Context(), sessionID, questionID, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/sessions/:id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.interviewSvc.EndSessionEarly(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
