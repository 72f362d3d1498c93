package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RecommendationStrongHire = "strong_hire"
	RecommendationHire       = "hire"
	RecommendationLeanHire   = "lean_hire"
	RecommendationNoHire     = "no_hire"
)

// OverallFeedback is the single end-of-session assessment, created at most
// once per session in the same transaction that marks it COMPLETED.
type OverallFeedback struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	Session        *Session       `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	OverallScore   int            `gorm:"column:overall_score;not null" json:"overall_score"`
	Summary        string         `gorm:"column:summary;type:text;not null" json:"summary"`
	Recommendation string         `gorm:"column:recommendation;not null" json:"recommendation"`
	Strengths      datatypes.JSON `gorm:"column:strengths;type:jsonb" json:"strengths"`
	Weaknesses     datatypes.JSON `gorm:"column:weaknesses;type:jsonb" json:"weaknesses"`
	Improvements   datatypes.JSON `gorm:"column:improvements;type:jsonb" json:"improvements"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (OverallFeedback) TableName() string { return "overall_feedback" }

func (o *OverallFeedback) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
