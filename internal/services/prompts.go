package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mockmate/mockmate-backend/internal/types"
)

func focusAreaList(session *types.Session) string {
	var areas []string
	if len(session.FocusAreas) > 0 {
		_ = json.Unmarshal(session.FocusAreas, &areas)
	}
	if len(areas) == 0 {
		return "general fit for the role"
	}
	return strings.Join(areas, ", ")
}

// interviewSystemInstruction is the standing instruction for the whole
// conversation. It is serialized inside TurnState so a reconstructed
// conversation behaves identically.
func interviewSystemInstruction(session *types.Session) string {
	var b strings.Builder
	b.WriteString("You are an experienced interviewer conducting a ")
	b.WriteString(session.Difficulty)
	b.WriteString(" ")
	b.WriteString(session.Category)
	b.WriteString(" interview for the role of ")
	if session.RoleTitle != "" {
		b.WriteString(session.RoleTitle)
	} else {
		b.WriteString("the advertised position")
	}
	b.WriteString(".\n")
	b.WriteString("Focus areas: ")
	b.WriteString(focusAreaList(session))
	b.WriteString(".\n")
	if session.ResumeSnapshot != "" {
		b.WriteString("\nCandidate resume:\n")
		b.WriteString(session.ResumeSnapshot)
		b.WriteString("\n")
	}
	if session.JobDescription != "" {
		b.WriteString("\nJob description:\n")
		b.WriteString(session.JobDescription)
		b.WriteString("\n")
	}
	b.WriteString("\nAsk one question at a time. Keep questions concise and conversational.")
	return b.String()
}

func initialQuestionPrompt() string {
	return `Begin the interview. Produce the opening question as a JSON object:
{
  "text": "the question to ask",
  "category": "technical|behavioral|situational",
  "difficulty": "easy|medium|hard",
  "topic": "short topic label",
  "is_follow_up": false,
  "ai_context": {"reasoning": "...", "expected_depth": "...", "related_topics": ["..."]},
  "evaluation_criteria": ["..."],
  "follow_up_triggers": ["..."]
}
Return only the JSON object.`
}

func feedbackPrompt(question *types.Question, answer string, metrics json.RawMessage) string {
	var b strings.Builder
	b.WriteString("Evaluate the candidate's answer.\n\nQuestion:\n")
	b.WriteString(question.Text)
	b.WriteString("\n\nAnswer:\n")
	b.WriteString(answer)
	if len(question.EvaluationCriteria) > 0 {
		b.WriteString("\n\nEvaluation criteria:\n")
		b.Write(question.EvaluationCriteria)
	}
	if len(metrics) > 0 {
		b.WriteString("\n\nDelivery metrics from audio analysis:\n")
		b.Write(metrics)
	}
	b.WriteString("\n\nReturn a JSON object: {\"content\": \"2-4 sentences of specific feedback\", \"score\": <integer 0-100>}. Return only the JSON object.")
	return b.String()
}

func continuationInstruction(session *types.Session, askedQuestions, maxQuestions int) string {
	return fmt.Sprintf(`You are deciding whether an ongoing %s %s interview for the role of %s should continue.

Prefer continuing while unexplored focus areas remain (%s) or the candidate's performance trend is not yet established.
Prefer ending when you have enough signal for a confident assessment, or when the interview approaches %d questions. %d have been asked so far.

Respond with a JSON object:
{
  "should_continue": true|false,
  "reasoning": "why",
  "next_question": {"text": "...", "category": "...", "difficulty": "...", "topic": "...", "is_follow_up": true|false, "parent_id": "uuid of the question being followed up, if any", "ai_context": {}, "evaluation_criteria": [], "follow_up_triggers": []},
  "assessment_summary": {"overall_impression": "...", "covered_topics": ["..."], "performance_trend": "improving|steady|declining"}
}
Include "next_question" only when should_continue is true, and "assessment_summary" only when it is false. Return only the JSON object.`,
		session.Difficulty, session.Category, session.RoleTitle, focusAreaList(session), maxQuestions, askedQuestions)
}

func decisionRequestPrompt() string {
	return "Based on the transcript above, decide whether to continue the interview. Return only the JSON verdict."
}

func closingPrompt() string {
	return "The interview is over. Thank the candidate briefly and naturally, in one or two sentences. Plain text, no JSON."
}

func overallFeedbackPrompt() string {
	return `Produce the final assessment of the whole interview as a JSON object:
{
  "overall_score": <integer 1-100>,
  "summary": "a paragraph summarizing the candidate's performance",
  "recommendation": "strong_hire|hire|lean_hire|no_hire",
  "strengths": ["3 to 5 items"],
  "weaknesses": ["3 to 5 items"],
  "improvements": ["3 to 5 concrete actions"]
}
Return only the JSON object.`
}
