package repository

import (
	"context"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Get 在事务内读取账户，tx 为空时使用事务外连接
func (r *AccountRepository) Get(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Save 按版本号条件更新账户的全部可变字段，版本不一致返回 store.ErrConflict
func (r *AccountRepository) Save(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"display_name":            account.DisplayName,
			"preferences":             account.Preferences,
			"primary_balance":         account.PrimaryBalance,
			"primary_lifetime_earned": account.PrimaryLifetimeEarned,
			"social_balance":          account.SocialBalance,
			"active_couple_id":        account.ActiveCoupleID,
			"pairing_history":         account.PairingHistory,
			"own_invite_code":         account.OwnInviteCode,
			"version":                 account.Version + 1,
		})
	if err := store.CheckUpdated(result); err != nil {
		return err
	}
	account.Version++
	return nil
}

// GetOrCreate 首次使用身份时创建账户，并发创建依赖主键冲突 DoNothing 保证只建一次
func (r *AccountRepository) GetOrCreate(ctx context.Context, id string) (*model.Account, error) {
	account, err := r.Get(ctx, nil, id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		ID:             id,
		PairingHistory: []model.PairingRecord{},
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, nil, id)
}
