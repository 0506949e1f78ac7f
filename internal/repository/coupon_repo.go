package repository

import (
	"context"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Get(ctx context.Context, tx *gorm.DB, id string) (*model.Coupon, error) {
	if tx == nil {
		tx = r.db
	}
	var coupon model.Coupon
	err := tx.WithContext(ctx).Where("id = ?", id).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) Create(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error {
	return store.CheckCreated(tx.WithContext(ctx).Create(coupon).Error)
}

// Save 按版本号条件更新，状态流转的合法性由调用方先校验
func (r *CouponRepository) Save(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error {
	result := tx.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ? AND version = ?", coupon.ID, coupon.Version).
		Updates(map[string]interface{}{
			"to_id":       coupon.ToID,
			"title":       coupon.Title,
			"description": coupon.Description,
			"expires_at":  coupon.ExpiresAt,
			"status":      coupon.Status,
			"sent_at":     coupon.SentAt,
			"used_at":     coupon.UsedAt,
			"version":     coupon.Version + 1,
		})
	if err := store.CheckUpdated(result); err != nil {
		return err
	}
	coupon.Version++
	return nil
}

// Delete 只允许删除读取时仍是草稿且版本未变的券
func (r *CouponRepository) Delete(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error {
	result := tx.WithContext(ctx).
		Where("id = ? AND version = ? AND status = ?", coupon.ID, coupon.Version, model.CouponStatusDraft).
		Delete(&model.Coupon{})
	return store.CheckUpdated(result)
}

// ListForAccount 返回账户发出或收到的券，草稿只对发出方可见
func (r *CouponRepository) ListForAccount(ctx context.Context, accountID string) ([]*model.Coupon, error) {
	var coupons []*model.Coupon
	err := r.db.WithContext(ctx).
		Where("from_id = ? OR (to_id = ? AND status <> ?)", accountID, accountID, model.CouponStatusDraft).
		Order("created_at DESC").
		Find(&coupons).Error
	return coupons, err
}
