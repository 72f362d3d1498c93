package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error)
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.Session, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, updates map[string]any) error
	SetStatus(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, status string) error
	SaveTurnContext(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, raw []byte) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.Session
	if err := transaction.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Session{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

func (r *sessionRepo) SetStatus(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, status string) error {
	return r.UpdateFields(ctx, tx, sessionID, map[string]any{"status": status})
}

func (r *sessionRepo) SaveTurnContext(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, raw []byte) error {
	return r.UpdateFields(ctx, tx, sessionID, map[string]any{"turn_context": datatypes.JSON(raw)})
}
