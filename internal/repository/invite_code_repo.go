package repository

import (
	"context"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type InviteCodeRepository struct {
	db *gorm.DB
}

func NewInviteCodeRepository(db *gorm.DB) *InviteCodeRepository {
	return &InviteCodeRepository{db: db}
}

func (r *InviteCodeRepository) Get(ctx context.Context, tx *gorm.DB, code string) (*model.InviteCode, error) {
	if tx == nil {
		tx = r.db
	}
	var invite model.InviteCode
	err := tx.WithContext(ctx).Where("code = ?", code).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteCodeNotFound
		}
		return nil, err
	}
	return &invite, nil
}

// Exists 检查候选邀请码是否已被占用
func (r *InviteCodeRepository) Exists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.InviteCode{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *InviteCodeRepository) Create(ctx context.Context, tx *gorm.DB, invite *model.InviteCode) error {
	return store.CheckCreated(tx.WithContext(ctx).Create(invite).Error)
}

// Save 按版本号条件更新兑换状态
func (r *InviteCodeRepository) Save(ctx context.Context, tx *gorm.DB, invite *model.InviteCode) error {
	result := tx.WithContext(ctx).
		Model(&model.InviteCode{}).
		Where("code = ? AND version = ?", invite.Code, invite.Version).
		Updates(map[string]interface{}{
			"active":         invite.Active,
			"redeemed_by_id": invite.RedeemedByID,
			"redeemed_at":    invite.RedeemedAt,
			"version":        invite.Version + 1,
		})
	if err := store.CheckUpdated(result); err != nil {
		return err
	}
	invite.Version++
	return nil
}
