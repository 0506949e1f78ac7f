package service

import (
	"context"

	"couplesystem/internal/config"
	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/store"
	"couplesystem/pkg/idgen"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================================
// 配对流程
// ============================================================================
//
// 兑换邀请码在一个事务内完成：
//
//   1. 读取邀请码，必须存在且 active
//   2. 兑换人不能是邀请码持有人
//   3. 读取双方账户，任一方已有进行中的关系则失败
//   4. 创建关系，成员资料和偏好按此刻快照
//   5. 双方账户写入 activeCoupleId 并追加配对记录
//   6. 邀请码置为失效并记录兑换人
//
// 两个人同时兑换同一个码，或同一个人同时兑换两个码，后提交的事务
// 在条件更新时发现版本变化，重新执行后会在第 1 步或第 3 步失败。
//
// ============================================================================

// CoupleCreatedEvent 关系建立事件
type CoupleCreatedEvent struct {
	CoupleID         string  `json:"couple_id"`
	MemberA          string  `json:"member_a"`
	MemberB          string  `json:"member_b"`
	PreviousCoupleID *string `json:"previous_couple_id,omitempty"`
}

// CoupleEndedEvent 关系结束事件
type CoupleEndedEvent struct {
	CoupleID string `json:"couple_id"`
	EndedBy  string `json:"ended_by"`
}

type RedeemResult struct {
	CoupleID  string `json:"couple_id"`
	PartnerID string `json:"partner_id"`
}

type PairingService struct {
	store       *store.Store
	log         *logrus.Logger
	prefix      string
	accountRepo *repository.AccountRepository
	inviteRepo  *repository.InviteCodeRepository
	coupleRepo  *repository.CoupleRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPairingService(st *store.Store, cfg *config.Config, log *logrus.Logger) *PairingService {
	return &PairingService{
		store:       st,
		log:         log,
		prefix:      cfg.Business.InviteCodePrefix,
		accountRepo: repository.NewAccountRepository(st.DB()),
		inviteRepo:  repository.NewInviteCodeRepository(st.DB()),
		coupleRepo:  repository.NewCoupleRepository(st.DB()),
		outboxRepo:  repository.NewOutboxRepository(st.DB()),
	}
}

// Redeem 用邀请码和持有人建立关系
func (s *PairingService) Redeem(ctx context.Context, rawCode, requesterID string) (*RedeemResult, error) {
	if requesterID == "" {
		return nil, ErrInvalidAccount
	}
	code, ok := idgen.NormalizeInviteCode(s.prefix, rawCode)
	if !ok {
		return nil, ErrInvalidInviteCode
	}

	var result *RedeemResult
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		result = nil

		invite, err := s.inviteRepo.Get(ctx, tx, code)
		if err != nil {
			return err
		}
		if !invite.Active {
			return ErrInviteCodeUsed
		}
		if invite.OwnerID == requesterID {
			return ErrSelfRedeem
		}

		owner, requester, err := s.loadUnpaired(ctx, tx, invite.OwnerID, requesterID)
		if err != nil {
			return err
		}

		couple, err := s.createCouple(ctx, tx, owner, requester, nil)
		if err != nil {
			return err
		}

		redeemedAt := timeNow()
		invite.Active = false
		invite.RedeemedByID = &requesterID
		invite.RedeemedAt = &redeemedAt
		if err := s.inviteRepo.Save(ctx, tx, invite); err != nil {
			return err
		}

		result = &RedeemResult{CoupleID: couple.ID, PartnerID: owner.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"couple_id": result.CoupleID,
		"member_a":  result.PartnerID,
		"member_b":  requesterID,
		"code":      code,
	}).Info("邀请码兑换成功")
	return result, nil
}

// Dissolve 结束关系，双方回到未配对状态
func (s *PairingService) Dissolve(ctx context.Context, coupleID, requesterID string) error {
	if coupleID == "" {
		return ErrMissingCoupleID
	}

	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		couple, err := s.coupleRepo.Get(ctx, tx, coupleID)
		if err != nil {
			return err
		}
		if !couple.HasMember(requesterID) {
			return ErrNotCoupleMember
		}
		if couple.Status == model.CoupleStatusEnded {
			return ErrCoupleEnded
		}

		endedAt := timeNow()
		couple.Status = model.CoupleStatusEnded
		couple.EndedAt = &endedAt
		if err := s.coupleRepo.Save(ctx, tx, couple); err != nil {
			return err
		}

		for _, memberID := range couple.Members() {
			account, err := s.accountRepo.Get(ctx, tx, memberID)
			if err != nil {
				return err
			}
			if account.ActiveCoupleID != nil && *account.ActiveCoupleID == coupleID {
				account.ActiveCoupleID = nil
			}
			if i := account.OpenPairing(coupleID); i >= 0 {
				account.PairingHistory[i].EndedAt = &endedAt
				account.PairingHistory[i].Status = model.PairingStatusEnded
			}
			if err := s.accountRepo.Save(ctx, tx, account); err != nil {
				return err
			}
		}

		return s.outboxRepo.Enqueue(ctx, tx, model.EventCoupleEnded, &CoupleEndedEvent{
			CoupleID: coupleID,
			EndedBy:  requesterID,
		})
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"couple_id": coupleID, "ended_by": requesterID}).Info("关系已解除")
	return nil
}

// Reconnect 和曾经的伴侣重新建立关系，新关系记录上一段关系的ID
func (s *PairingService) Reconnect(ctx context.Context, requesterID, partnerID, previousCoupleID string) (*RedeemResult, error) {
	if requesterID == "" || partnerID == "" {
		return nil, ErrInvalidAccount
	}
	if previousCoupleID == "" {
		return nil, ErrMissingCoupleID
	}
	if requesterID == partnerID {
		return nil, ErrSelfRedeem
	}

	var result *RedeemResult
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		result = nil

		previous, err := s.coupleRepo.Get(ctx, tx, previousCoupleID)
		if err != nil {
			return err
		}
		if !previous.HasMember(requesterID) || !previous.HasMember(partnerID) {
			return ErrNotCoupleMember
		}

		partner, requester, err := s.loadUnpaired(ctx, tx, partnerID, requesterID)
		if err != nil {
			return err
		}

		couple, err := s.createCouple(ctx, tx, partner, requester, &previousCoupleID)
		if err != nil {
			return err
		}
		result = &RedeemResult{CoupleID: couple.ID, PartnerID: partnerID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"couple_id":          result.CoupleID,
		"previous_couple_id": previousCoupleID,
	}).Info("关系已重新建立")
	return result, nil
}

// Pause 暂停关系，成员仍然占用 activeCoupleId
func (s *PairingService) Pause(ctx context.Context, coupleID, requesterID string) (*model.Couple, error) {
	return s.setStatus(ctx, coupleID, requesterID, model.CoupleStatusActive, model.CoupleStatusPaused)
}

func (s *PairingService) Resume(ctx context.Context, coupleID, requesterID string) (*model.Couple, error) {
	return s.setStatus(ctx, coupleID, requesterID, model.CoupleStatusPaused, model.CoupleStatusActive)
}

func (s *PairingService) setStatus(ctx context.Context, coupleID, requesterID, from, to string) (*model.Couple, error) {
	if coupleID == "" {
		return nil, ErrMissingCoupleID
	}

	var updated *model.Couple
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		updated = nil
		couple, err := s.coupleRepo.Get(ctx, tx, coupleID)
		if err != nil {
			return err
		}
		if !couple.HasMember(requesterID) {
			return ErrNotCoupleMember
		}
		if couple.Status == model.CoupleStatusEnded {
			return ErrCoupleEnded
		}
		if couple.Status != from {
			return ErrCoupleStatus
		}
		couple.Status = to
		if err := s.coupleRepo.Save(ctx, tx, couple); err != nil {
			return err
		}
		updated = couple
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCouple 只有成员可以查看
func (s *PairingService) GetCouple(ctx context.Context, coupleID, requesterID string) (*model.Couple, error) {
	if coupleID == "" {
		return nil, ErrMissingCoupleID
	}
	couple, err := s.coupleRepo.Get(ctx, nil, coupleID)
	if err != nil {
		return nil, err
	}
	if !couple.HasMember(requesterID) {
		return nil, ErrNotCoupleMember
	}
	return couple, nil
}

// ListCouples 账户参与过的全部关系
func (s *PairingService) ListCouples(ctx context.Context, accountID string) ([]*model.Couple, error) {
	return s.coupleRepo.ListByMember(ctx, accountID)
}

// loadUnpaired 读取双方账户，任一方已有进行中的关系则失败
func (s *PairingService) loadUnpaired(ctx context.Context, tx *gorm.DB, aID, bID string) (*model.Account, *model.Account, error) {
	a, err := s.accountRepo.Get(ctx, tx, aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.accountRepo.Get(ctx, tx, bID)
	if err != nil {
		return nil, nil, err
	}
	if a.ActiveCoupleID != nil || b.ActiveCoupleID != nil {
		return nil, nil, ErrAlreadyPaired
	}
	return a, b, nil
}

// createCouple 创建关系并绑定双方账户，memberA 为邀请方
func (s *PairingService) createCouple(ctx context.Context, tx *gorm.DB, memberA, memberB *model.Account, previousCoupleID *string) (*model.Couple, error) {
	startedAt := timeNow()
	couple := &model.Couple{
		ID:      uuid.NewString(),
		MemberA: memberA.ID,
		MemberB: memberB.ID,
		MemberProfiles: []model.MemberProfile{
			{AccountID: memberA.ID, DisplayName: memberA.DisplayName},
			{AccountID: memberB.ID, DisplayName: memberB.DisplayName},
		},
		Status: model.CoupleStatusActive,
		SharedState: datatypes.JSONMap{
			memberA.ID: snapshot(memberA.Preferences),
			memberB.ID: snapshot(memberB.Preferences),
		},
		PreviousCoupleID: previousCoupleID,
	}
	if err := s.coupleRepo.Create(ctx, tx, couple); err != nil {
		return nil, err
	}

	for _, pair := range [][2]*model.Account{{memberA, memberB}, {memberB, memberA}} {
		account, partner := pair[0], pair[1]
		account.ActiveCoupleID = &couple.ID
		account.PairingHistory = append(account.PairingHistory, model.PairingRecord{
			CoupleID:  couple.ID,
			PartnerID: partner.ID,
			StartedAt: startedAt,
			Status:    model.PairingStatusActive,
		})
		if err := s.accountRepo.Save(ctx, tx, account); err != nil {
			return nil, err
		}
	}

	err := s.outboxRepo.Enqueue(ctx, tx, model.EventCoupleCreated, &CoupleCreatedEvent{
		CoupleID:         couple.ID,
		MemberA:          memberA.ID,
		MemberB:          memberB.ID,
		PreviousCoupleID: previousCoupleID,
	})
	if err != nil {
		return nil, err
	}
	return couple, nil
}

// snapshot 复制偏好，关系里保存的是配对时刻的值
func snapshot(prefs datatypes.JSONMap) map[string]interface{} {
	out := make(map[string]interface{}, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out
}
