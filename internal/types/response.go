package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ResponseKindText  = "text"
	ResponseKindAudio = "audio"
)

// Response is the candidate's answer to exactly one Question. Content always
// holds text: the transcript when the answer was audio. FileURL stays nil
// when the audio artifact upload failed; losing the artifact is tolerated,
// losing the transcript is not.
type Response struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"question_id"`
	Question     *Question      `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	SessionID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Kind         string         `gorm:"column:kind;not null" json:"kind"`
	Content      string         `gorm:"column:content;type:text;not null" json:"content"`
	FileURL      *string        `gorm:"column:file_url" json:"file_url,omitempty"`
	DurationSec  *float64       `gorm:"column:duration_sec" json:"duration_sec,omitempty"`
	AudioMetrics datatypes.JSON `gorm:"column:audio_metrics;type:jsonb" json:"audio_metrics,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (Response) TableName() string { return "response" }

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
