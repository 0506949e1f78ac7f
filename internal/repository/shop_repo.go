package repository

import (
	"context"
	"time"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ShopListingRepository struct {
	db *gorm.DB
}

func NewShopListingRepository(db *gorm.DB) *ShopListingRepository {
	return &ShopListingRepository{db: db}
}

func (r *ShopListingRepository) Get(ctx context.Context, tx *gorm.DB, id string) (*model.ShopListing, error) {
	if tx == nil {
		tx = r.db
	}
	var listing model.ShopListing
	err := tx.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

func (r *ShopListingRepository) Create(ctx context.Context, tx *gorm.DB, listing *model.ShopListing) error {
	return store.CheckCreated(tx.WithContext(ctx).Create(listing).Error)
}

// Deactivate 下架；重复下架不报错
func (r *ShopListingRepository) Deactivate(ctx context.Context, tx *gorm.DB, id string) error {
	return tx.WithContext(ctx).
		Model(&model.ShopListing{}).
		Where("id = ?", id).
		Update("active", false).Error
}

func (r *ShopListingRepository) ListByCouple(ctx context.Context, coupleID string, activeOnly bool) ([]*model.ShopListing, error) {
	var listings []*model.ShopListing
	query := r.db.WithContext(ctx).Where("couple_id = ?", coupleID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("created_at DESC").Find(&listings).Error
	return listings, err
}

// GetExpired 查询已过有效期但仍在售的商品
func (r *ShopListingRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*model.ShopListing, error) {
	var listings []*model.ShopListing
	err := r.db.WithContext(ctx).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&listings).Error
	return listings, err
}
