package repository

import (
	"context"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CoupleRepository struct {
	db *gorm.DB
}

func NewCoupleRepository(db *gorm.DB) *CoupleRepository {
	return &CoupleRepository{db: db}
}

func (r *CoupleRepository) Get(ctx context.Context, tx *gorm.DB, id string) (*model.Couple, error) {
	if tx == nil {
		tx = r.db
	}
	var couple model.Couple
	err := tx.WithContext(ctx).Where("id = ?", id).First(&couple).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCoupleNotFound
		}
		return nil, err
	}
	return &couple, nil
}

func (r *CoupleRepository) Create(ctx context.Context, tx *gorm.DB, couple *model.Couple) error {
	return store.CheckCreated(tx.WithContext(ctx).Create(couple).Error)
}

// Save 关系创建后只有状态和结束时间会变化
func (r *CoupleRepository) Save(ctx context.Context, tx *gorm.DB, couple *model.Couple) error {
	result := tx.WithContext(ctx).
		Model(&model.Couple{}).
		Where("id = ? AND version = ?", couple.ID, couple.Version).
		Updates(map[string]interface{}{
			"status":   couple.Status,
			"ended_at": couple.EndedAt,
			"version":  couple.Version + 1,
		})
	if err := store.CheckUpdated(result); err != nil {
		return err
	}
	couple.Version++
	return nil
}

// ListByMember 按创建时间倒序返回账户参与过的全部关系
func (r *CoupleRepository) ListByMember(ctx context.Context, accountID string) ([]*model.Couple, error) {
	var couples []*model.Couple
	err := r.db.WithContext(ctx).
		Where("member_a = ? OR member_b = ?", accountID, accountID).
		Order("created_at DESC").
		Find(&couples).Error
	return couples, err
}
