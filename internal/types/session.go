package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusCreated   = "CREATED"
	SessionStatusStarted   = "STARTED"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusAbandoned = "ABANDONED"
)

const (
	SessionCategoryTechnical   = "technical"
	SessionCategoryBehavioral  = "behavioral"
	SessionCategorySituational = "situational"
)

// Session is one interview attempt by one candidate. TurnContext holds the
// durable snapshot of the serialized conversation; the cache copy in redis
// may expire, this one must not.
type Session struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Status         string         `gorm:"column:status;not null;default:'CREATED'" json:"status"`
	Category       string         `gorm:"column:category;not null" json:"category"`
	Difficulty     string         `gorm:"column:difficulty;not null" json:"difficulty"`
	RoleTitle      string         `gorm:"column:role_title" json:"role_title"`
	FocusAreas     datatypes.JSON `gorm:"column:focus_areas;type:jsonb" json:"focus_areas"`
	ResumeSnapshot string         `gorm:"column:resume_snapshot;type:text" json:"resume_snapshot,omitempty"`
	JobDescription string         `gorm:"column:job_description;type:text" json:"job_description,omitempty"`
	TurnContext    datatypes.JSON `gorm:"column:turn_context;type:jsonb" json:"-"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Live reports whether the session can still accept questions and responses.
func (s *Session) Live() bool {
	return s.Status == SessionStatusCreated || s.Status == SessionStatusStarted
}
