package users

import (
	"context"
	"time"

	"github.com/datavault/datavault/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuthMethodRepository interface {
	WithTx(tx *gorm.DB) AuthMethodRepository
	Find(ctx context.Context, userID uint) ([]*model.UserAuthMethod, error)
	Upsert(ctx context.Context, method *model.UserAuthMethod) error
	Touch(ctx context.Context, userID uint, methodType string, usedAt time.Time) error
	SetEnabled(ctx context.Context, userID uint, methodType string, enabled bool) error
}

type authMethodRepository struct {
	db *gorm.DB
}

func (r *authMethodRepository) Find(ctx context.Context, userID uint) ([]*model.UserAuthMethod, error) {
	var methods []*model.UserAuthMethod
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&methods).Error
	return methods, err
}

func (r *authMethodRepository) Upsert(ctx context.Context, method *model.UserAuthMethod) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "last_used_at"}),
	}).Create(method).Error
}

func (r *authMethodRepository) Touch(ctx context.Context, userID uint, methodType string, usedAt time.Time) error {
	return r.Upsert(ctx, &model.UserAuthMethod{
		UserID:     userID,
		Type:       methodType,
		Enabled:    true,
		SetupAt:    usedAt,
		LastUsedAt: &usedAt,
	})
}

func (r *authMethodRepository) SetEnabled(ctx context.Context, userID uint, methodType string, enabled bool) error {
	return r.db.WithContext(ctx).Model(&model.UserAuthMethod{}).
		Where("user_id = ? AND type = ?", userID, methodType).
		Update("enabled", enabled).Error
}

func (r *authMethodRepository) WithTx(tx *gorm.DB) AuthMethodRepository {
	return NewAuthMethodRepository(tx)
}

func NewAuthMethodRepository(db *gorm.DB) AuthMethodRepository {
	return &authMethodRepository{db}
}
