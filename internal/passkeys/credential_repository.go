package passkeys

import (
	"context"
	"time"

	"github.com/datavault/datavault/model"
	"gorm.io/gorm"
)

type CredentialRepository interface {
	WithTx(tx *gorm.DB) CredentialRepository
	Create(ctx context.Context, cred *model.Credential) error
	FindByUser(ctx context.Context, userID uint) ([]*model.Credential, error)
	// FindByCredentialID returns every record matching the opaque credential
	// identifier. The unique index allows at most one; callers treat more
	// than one as a store integrity violation.
	FindByCredentialID(ctx context.Context, credentialID []byte) ([]*model.Credential, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	UpdateCounter(ctx context.Context, id uint, signCount uint32, usedAt time.Time) error
	Delete(ctx context.Context, userID uint, id uint) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uint) (int64, error)
}

type credentialRepository struct {
	db *gorm.DB
}

func (r *credentialRepository) Create(ctx context.Context, cred *model.Credential) error {
	return r.db.WithContext(ctx).Create(cred).Error
}

func (r *credentialRepository) FindByUser(ctx context.Context, userID uint) ([]*model.Credential, error) {
	var creds []*model.Credential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&creds).Error
	return creds, err
}

func (r *credentialRepository) FindByCredentialID(ctx context.Context, credentialID []byte) ([]*model.Credential, error) {
	var creds []*model.Credential
	err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).Find(&creds).Error
	return creds, err
}

func (r *credentialRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Credential{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *credentialRepository) UpdateCounter(ctx context.Context, id uint, signCount uint32, usedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Credential{}).Where("id = ?", id).
		Updates(map[string]interface{}{"sign_count": signCount, "last_used_at": usedAt}).Error
}

func (r *credentialRepository) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Credential{})
	return res.RowsAffected, res.Error
}

func (r *credentialRepository) DeleteAllForUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Credential{})
	return res.RowsAffected, res.Error
}

func (r *credentialRepository) WithTx(tx *gorm.DB) CredentialRepository {
	return NewCredentialRepository(tx)
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db}
}
