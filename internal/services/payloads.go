package services

import "encoding/json"

// Structured payloads the generative backend returns. Each one is schema
// validated (schemas.go) before being decoded into these types.

type QuestionPayload struct {
	Text               string          `json:"text"`
	Category           string          `json:"category,omitempty"`
	Difficulty         string          `json:"difficulty,omitempty"`
	Topic              string          `json:"topic,omitempty"`
	IsFollowUp         bool            `json:"is_follow_up,omitempty"`
	ParentID           string          `json:"parent_id,omitempty"`
	AIContext          json.RawMessage `json:"ai_context,omitempty"`
	EvaluationCriteria json.RawMessage `json:"evaluation_criteria,omitempty"`
	FollowUpTriggers   json.RawMessage `json:"follow_up_triggers,omitempty"`
}

type FeedbackPayload struct {
	Content string `json:"content"`
	Score   int    `json:"score"`
}

type AssessmentSummary struct {
	OverallImpression string   `json:"overall_impression,omitempty"`
	CoveredTopics     []string `json:"covered_topics,omitempty"`
	PerformanceTrend  string   `json:"performance_trend,omitempty"`
}

// Verdict is the continuation policy's structured decision.
type Verdict struct {
	ShouldContinue bool               `json:"should_continue"`
	Reasoning      string             `json:"reasoning"`
	NextQuestion   *QuestionPayload   `json:"next_question,omitempty"`
	Assessment     *AssessmentSummary `json:"assessment_summary,omitempty"`
}

type OverallFeedbackPayload struct {
	OverallScore   int      `json:"overall_score"`
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Improvements   []string `json:"improvements"`
}
