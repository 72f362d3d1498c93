package services

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSON Schemas for structured AI output. The backend is asked for JSON but
// never trusted to conform; everything is validated here before it touches
// the database.

const questionProperties = `{
	"text": {"type": "string", "minLength": 1},
	"category": {"type": "string"},
	"difficulty": {"type": "string"},
	"topic": {"type": "string"},
	"is_follow_up": {"type": "boolean"},
	"parent_id": {"type": "string"},
	"ai_context": {"type": "object"},
	"evaluation_criteria": {"type": "array", "items": {"type": "string"}},
	"follow_up_triggers": {"type": "array", "items": {"type": "string"}}
}`

var questionSchema = mustCompileSchema(`{
	"type": "object",
	"required": ["text"],
	"properties": ` + questionProperties + `,
	"additionalProperties": false
}`)

var feedbackSchema = mustCompileSchema(`{
	"type": "object",
	"required": ["content", "score"],
	"properties": {
		"content": {"type": "string", "minLength": 1},
		"score": {"type": "integer", "minimum": 0, "maximum": 100}
	},
	"additionalProperties": false
}`)

var verdictSchema = mustCompileSchema(`{
	"type": "object",
	"required": ["should_continue", "reasoning"],
	"properties": {
		"should_continue": {"type": "boolean"},
		"reasoning": {"type": "string", "minLength": 1},
		"next_question": {
			"type": "object",
			"required": ["text"],
			"properties": ` + questionProperties + `,
			"additionalProperties": false
		},
		"assessment_summary": {
			"type": "object",
			"properties": {
				"overall_impression": {"type": "string"},
				"covered_topics": {"type": "array", "items": {"type": "string"}},
				"performance_trend": {"type": "string"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`)

var overallFeedbackSchema = mustCompileSchema(`{
	"type": "object",
	"required": ["overall_score", "summary", "recommendation", "strengths", "weaknesses", "improvements"],
	"properties": {
		"overall_score": {"type": "integer", "minimum": 1, "maximum": 100},
		"summary": {"type": "string", "minLength": 1},
		"recommendation": {"type": "string", "enum": ["strong_hire", "hire", "lean_hire", "no_hire"]},
		"strengths": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 5},
		"weaknesses": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 5},
		"improvements": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 5}
	},
	"additionalProperties": false
}`)

func mustCompileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return schema
}

func validateAgainstSchema(schema *gojsonschema.Schema, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: model output is not valid JSON: %v", ErrValidation, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: model output rejected by schema: %s", ErrValidation, strings.Join(msgs, "; "))
}
