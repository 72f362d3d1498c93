package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/types"
)

type OverallFeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, feedback *types.OverallFeedback) (*types.OverallFeedback, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.OverallFeedback, error)
}

type overallFeedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOverallFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) OverallFeedbackRepo {
	return &overallFeedbackRepo{db: db, log: baseLog.With("repo", "OverallFeedbackRepo")}
}

func (r *overallFeedbackRepo) Create(ctx context.Context, tx *gorm.DB, feedback *types.OverallFeedback) (*types.OverallFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(feedback).Error; err != nil {
		return nil, err
	}
	return feedback, nil
}

func (r *overallFeedbackRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.OverallFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var feedback types.OverallFeedback
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&feedback).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &feedback, nil
}
