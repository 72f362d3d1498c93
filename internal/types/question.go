package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Question is one turn posed to the candidate. ParentID forms a tree of
// follow-ups: a follow-up's parent is the most recently created question in
// the same session at the moment of creation. Immutable once written.
type Question struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Session            *Session       `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	ParentID           *uuid.UUID     `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Text               string         `gorm:"column:text;type:text;not null" json:"text"`
	Category           string         `gorm:"column:category" json:"category"`
	Difficulty         string         `gorm:"column:difficulty" json:"difficulty"`
	Topic              string         `gorm:"column:topic" json:"topic"`
	Position           int            `gorm:"column:position;not null" json:"position"`
	IsFollowUp         bool           `gorm:"column:is_follow_up;not null;default:false" json:"is_follow_up"`
	FollowUpDepth      int            `gorm:"column:follow_up_depth;not null;default:0" json:"follow_up_depth"`
	AIContext          datatypes.JSON `gorm:"column:ai_context;type:jsonb" json:"ai_context,omitempty"`
	EvaluationCriteria datatypes.JSON `gorm:"column:evaluation_criteria;type:jsonb" json:"evaluation_criteria,omitempty"`
	FollowUpTriggers   datatypes.JSON `gorm:"column:follow_up_triggers;type:jsonb" json:"follow_up_triggers,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
