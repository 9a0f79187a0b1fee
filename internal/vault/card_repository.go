package vault

import (
	"context"

	"github.com/datavault/datavault/model"
	"gorm.io/gorm"
)

type CardRepository interface {
	Create(ctx context.Context, card *model.CreditCard) error
	First(ctx context.Context, userID uint, id uint) (*model.CreditCard, error)
	Find(ctx context.Context, userID uint) ([]*model.CreditCard, error)
	Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error)
	Delete(ctx context.Context, userID uint, id uint) (int64, error)
}

type cardRepository struct {
	db *gorm.DB
}

func (r *cardRepository) Create(ctx context.Context, card *model.CreditCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *cardRepository) First(ctx context.Context, userID uint, id uint) (*model.CreditCard, error) {
	var card model.CreditCard
	if err := r.db.WithContext(ctx).First(&card, "user_id = ? AND id = ?", userID, id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *cardRepository) Find(ctx context.Context, userID uint) ([]*model.CreditCard, error) {
	var cards []*model.CreditCard
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&cards).Error
	return cards, err
}

func (r *cardRepository) Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.CreditCard{}).
		Where("user_id = ? AND id = ?", userID, id).Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *cardRepository) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.CreditCard{})
	return res.RowsAffected, res.Error
}

func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db}
}
