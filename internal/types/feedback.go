package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Feedback scores exactly one Response. Append-only.
type Feedback struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ResponseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"response_id"`
	Response   *Response `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResponseID;references:ID" json:"response,omitempty"`
	SessionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	Score      int       `gorm:"column:score;not null" json:"score"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
