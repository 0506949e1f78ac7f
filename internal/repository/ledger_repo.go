package repository

import (
	"context"

	"couplesystem/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append 追加一条流水，不在余额事务内执行
func (r *LedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) ListByCouple(ctx context.Context, coupleID string, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("couple_id = ?", coupleID), page, pageSize)
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID), page, pageSize)
}

func (r *LedgerRepository) list(ctx context.Context, query *gorm.DB, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
