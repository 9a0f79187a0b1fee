package vault

import (
	"context"

	"github.com/datavault/datavault/model"
	"gorm.io/gorm"
)

type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	First(ctx context.Context, userID uint, id uint) (*model.Contact, error)
	Find(ctx context.Context, userID uint) ([]*model.Contact, error)
	Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error)
	Delete(ctx context.Context, userID uint, id uint) (int64, error)
}

type contactRepository struct {
	db *gorm.DB
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *contactRepository) First(ctx context.Context, userID uint, id uint) (*model.Contact, error) {
	var contact model.Contact
	if err := r.db.WithContext(ctx).First(&contact, "user_id = ? AND id = ?", userID, id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) Find(ctx context.Context, userID uint) ([]*model.Contact, error) {
	var contacts []*model.Contact
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("full_name ASC").Find(&contacts).Error
	return contacts, err
}

func (r *contactRepository) Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Contact{}).
		Where("user_id = ? AND id = ?", userID, id).Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *contactRepository) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Contact{})
	return res.RowsAffected, res.Error
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db}
}
