package service

import (
	"context"
	"time"

	"couplesystem/internal/config"
	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/store"
	"couplesystem/pkg/idgen"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IdentityService 账户与邀请码
type IdentityService struct {
	store       *store.Store
	log         *logrus.Logger
	prefix      string
	maxAttempts int
	generate    func(prefix string) string
	accountRepo *repository.AccountRepository
	inviteRepo  *repository.InviteCodeRepository
}

func NewIdentityService(st *store.Store, cfg *config.Config, log *logrus.Logger) *IdentityService {
	maxAttempts := cfg.Business.InviteCodeMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &IdentityService{
		store:       st,
		log:         log,
		prefix:      cfg.Business.InviteCodePrefix,
		maxAttempts: maxAttempts,
		generate:    idgen.InviteCode,
		accountRepo: repository.NewAccountRepository(st.DB()),
		inviteRepo:  repository.NewInviteCodeRepository(st.DB()),
	}
}

// EnsureAccount 首次出现的身份自动建档，已存在则直接返回
func (s *IdentityService) EnsureAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	account, err := s.accountRepo.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(store.ErrUnavailable, err.Error())
	}
	return account, nil
}

func (s *IdentityService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	return s.accountRepo.Get(ctx, nil, accountID)
}

type UpdateProfileRequest struct {
	DisplayName *string                `json:"display_name"`
	Preferences map[string]interface{} `json:"preferences"`
}

// UpdateProfile 修改昵称和偏好，已建立的关系里保存的是配对时的快照，不受影响
func (s *IdentityService) UpdateProfile(ctx context.Context, accountID string, req *UpdateProfileRequest) (*model.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}

	var updated *model.Account
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		updated = nil
		account, err := s.accountRepo.Get(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if req.DisplayName != nil {
			account.DisplayName = *req.DisplayName
		}
		if req.Preferences != nil {
			account.Preferences = datatypes.JSONMap(req.Preferences)
		}
		if err := s.accountRepo.Save(ctx, tx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EnsureInviteCode 返回账户的邀请码，没有则生成一个。
// 已兑换的码也原样返回，换码只能通过 RegenerateInviteCode
func (s *IdentityService) EnsureInviteCode(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", ErrInvalidAccount
	}

	var code string
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		code = ""
		account, err := s.accountRepo.Get(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.OwnInviteCode != nil {
			code = *account.OwnInviteCode
			return nil
		}
		code, err = s.issueCode(ctx, tx, account)
		return err
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// RegenerateInviteCode 作废当前邀请码并换一个新的
func (s *IdentityService) RegenerateInviteCode(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", ErrInvalidAccount
	}

	var code string
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		code = ""
		account, err := s.accountRepo.Get(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.OwnInviteCode != nil {
			invite, err := s.inviteRepo.Get(ctx, tx, *account.OwnInviteCode)
			if err != nil && !errors.Is(err, repository.ErrInviteCodeNotFound) {
				return err
			}
			if invite != nil && invite.Active {
				invite.Active = false
				if err := s.inviteRepo.Save(ctx, tx, invite); err != nil {
					return err
				}
			}
		}
		code, err = s.issueCode(ctx, tx, account)
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{"account_id": accountID, "code": code}).Info("邀请码已重新生成")
	return code, nil
}

// issueCode 生成不冲突的邀请码并绑定到账户，候选码全部被占用时放弃
func (s *IdentityService) issueCode(ctx context.Context, tx *gorm.DB, account *model.Account) (string, error) {
	for i := 0; i < s.maxAttempts; i++ {
		candidate := s.generate(s.prefix)
		exists, err := s.inviteRepo.Exists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}

		invite := &model.InviteCode{
			Code:    candidate,
			OwnerID: account.ID,
			Active:  true,
		}
		if err := s.inviteRepo.Create(ctx, tx, invite); err != nil {
			return "", err
		}
		account.OwnInviteCode = &candidate
		if err := s.accountRepo.Save(ctx, tx, account); err != nil {
			return "", err
		}
		return candidate, nil
	}

	s.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"attempts":   s.maxAttempts,
	}).Warn("邀请码生成连续冲突")
	return "", ErrInviteCodeExhausted
}

// timeNow 测试中替换为固定时钟
var timeNow = time.Now
