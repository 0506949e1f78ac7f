package service

import (
	"context"
	"strings"
	"time"

	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CouponEvent 券使用/撤销事件
type CouponEvent struct {
	CouponID string `json:"coupon_id"`
	CoupleID string `json:"couple_id"`
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	Status   string `json:"status"`
}

type CouponService struct {
	store       *store.Store
	log         *logrus.Logger
	accountRepo *repository.AccountRepository
	coupleRepo  *repository.CoupleRepository
	couponRepo  *repository.CouponRepository
	outboxRepo  *repository.OutboxRepository
}

func NewCouponService(st *store.Store, log *logrus.Logger) *CouponService {
	return &CouponService{
		store:       st,
		log:         log,
		accountRepo: repository.NewAccountRepository(st.DB()),
		coupleRepo:  repository.NewCoupleRepository(st.DB()),
		couponRepo:  repository.NewCouponRepository(st.DB()),
		outboxRepo:  repository.NewOutboxRepository(st.DB()),
	}
}

type CreateCouponRequest struct {
	ToID        *string    `json:"to_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Create 创建草稿券，发出方必须已配对
func (s *CouponService) Create(ctx context.Context, fromID string, req *CreateCouponRequest) (*model.Coupon, error) {
	if fromID == "" {
		return nil, ErrInvalidAccount
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrInvalidTitle
	}
	if req.ToID != nil && *req.ToID == fromID {
		return nil, ErrInvalidRecipient
	}

	var created *model.Coupon
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		created = nil
		account, err := s.accountRepo.Get(ctx, tx, fromID)
		if err != nil {
			return err
		}
		if account.ActiveCoupleID == nil {
			return ErrNotPaired
		}
		if req.ToID != nil {
			if err := s.checkRecipient(ctx, tx, *account.ActiveCoupleID, fromID, *req.ToID); err != nil {
				return err
			}
		}
		coupon := &model.Coupon{
			ID:          uuid.NewString(),
			CoupleID:    *account.ActiveCoupleID,
			FromID:      fromID,
			ToID:        req.ToID,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			ExpiresAt:   req.ExpiresAt,
			Status:      model.CouponStatusDraft,
		}
		if err := s.couponRepo.Create(ctx, tx, coupon); err != nil {
			return err
		}
		created = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EditCouponRequest 只修改非空字段
type EditCouponRequest struct {
	ToID        *string    `json:"to_id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Edit 只有发出方可以修改，且只能在草稿阶段
func (s *CouponService) Edit(ctx context.Context, couponID, actorID string, req *EditCouponRequest) (*model.Coupon, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, ErrInvalidTitle
	}
	if req.ToID != nil && *req.ToID == actorID {
		return nil, ErrInvalidRecipient
	}

	return s.mutate(ctx, couponID, func(c *model.Coupon) error {
		if c.FromID != actorID {
			return ErrCouponForbidden
		}
		if c.Status != model.CouponStatusDraft {
			return ErrCouponNotDraft
		}
		if req.ToID != nil {
			c.ToID = req.ToID
		}
		if req.Title != nil {
			c.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			c.Description = *req.Description
		}
		if req.ExpiresAt != nil {
			c.ExpiresAt = req.ExpiresAt
		}
		return nil
	})
}

// Delete 删除草稿
func (s *CouponService) Delete(ctx context.Context, couponID, actorID string) error {
	return s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		coupon, err := s.couponRepo.Get(ctx, tx, couponID)
		if err != nil {
			return err
		}
		if coupon.FromID != actorID {
			return ErrCouponForbidden
		}
		if coupon.Status != model.CouponStatusDraft {
			return ErrCouponNotDraft
		}
		return s.couponRepo.Delete(ctx, tx, coupon)
	})
}

// Send 草稿 -> 已发送，之后内容不可再改。toID 为空时使用草稿里的接收人
func (s *CouponService) Send(ctx context.Context, couponID, actorID string, toID *string) (*model.Coupon, error) {
	if toID != nil && *toID == actorID {
		return nil, ErrInvalidRecipient
	}

	return s.mutate(ctx, couponID, func(c *model.Coupon) error {
		if c.FromID != actorID {
			return ErrCouponForbidden
		}
		if c.PriceInPrimary > 0 {
			return ErrCouponPriced
		}
		if c.Status != model.CouponStatusDraft {
			return ErrCouponNotDraft
		}
		c.Status = model.CouponStatusSent
		if toID != nil {
			c.ToID = toID
		}
		if c.ToID == nil || *c.ToID == "" {
			return ErrCouponNoRecipient
		}
		sentAt := timeNow()
		c.SentAt = &sentAt
		return nil
	})
}

// Use 接收方使用券，同一张券并发使用只有一个成功
func (s *CouponService) Use(ctx context.Context, couponID, actorID string) (*model.Coupon, error) {
	return s.mutateWithEvent(ctx, couponID, model.EventCouponUsed, func(c *model.Coupon) error {
		if c.ToID == nil || *c.ToID != actorID {
			return ErrCouponForbidden
		}
		if c.Status != model.CouponStatusSent {
			return ErrCouponNotSent
		}
		usedAt := timeNow()
		if c.Expired(usedAt) {
			return ErrCouponExpired
		}
		c.Status = model.CouponStatusUsed
		c.UsedAt = &usedAt
		return nil
	})
}

// Undo 撤销使用，已使用 -> 已发送
func (s *CouponService) Undo(ctx context.Context, couponID, actorID string) (*model.Coupon, error) {
	return s.mutateWithEvent(ctx, couponID, model.EventCouponUndone, func(c *model.Coupon) error {
		if c.ToID == nil || *c.ToID != actorID {
			return ErrCouponForbidden
		}
		if c.Status != model.CouponStatusUsed {
			return ErrCouponNotUsed
		}
		c.Status = model.CouponStatusSent
		c.UsedAt = nil
		return nil
	})
}

// List 账户发出和收到的券
func (s *CouponService) List(ctx context.Context, accountID string) ([]*model.Coupon, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	return s.couponRepo.ListForAccount(ctx, accountID)
}

// IssueFromListing 按商品模板给买家生成一张已发送的券，在购买事务内调用
func (s *CouponService) IssueFromListing(ctx context.Context, tx *gorm.DB, listing *model.ShopListing, buyerID string) (*model.Coupon, error) {
	sentAt := timeNow()
	listingID := listing.ID
	coupon := &model.Coupon{
		ID:             uuid.NewString(),
		CoupleID:       listing.CoupleID,
		FromID:         listing.OwnerID,
		ToID:           &buyerID,
		Title:          listing.Title,
		Description:    listing.Description,
		ExpiresAt:      listing.ExpiresAt,
		Status:         model.CouponStatusSent,
		PriceInPrimary: listing.PriceInPrimary,
		ListingID:      &listingID,
		SentAt:         &sentAt,
	}
	if err := s.couponRepo.Create(ctx, tx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *CouponService) mutate(ctx context.Context, couponID string, apply func(*model.Coupon) error) (*model.Coupon, error) {
	return s.mutateWithEvent(ctx, couponID, "", apply)
}

// mutateWithEvent 读取-校验-条件更新，eventType 非空时同一事务写入事件
func (s *CouponService) mutateWithEvent(ctx context.Context, couponID, eventType string, apply func(*model.Coupon) error) (*model.Coupon, error) {
	var updated *model.Coupon
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		updated = nil
		coupon, err := s.couponRepo.Get(ctx, tx, couponID)
		if err != nil {
			return err
		}
		from := coupon.Status
		fromTo := recipientOf(coupon)
		if err := apply(coupon); err != nil {
			return err
		}
		if coupon.Status != from && !model.CanCouponTransitionTo(from, coupon.Status) {
			return ErrCouponTransition
		}
		if to := recipientOf(coupon); to != "" && to != fromTo {
			if err := s.checkRecipient(ctx, tx, coupon.CoupleID, coupon.FromID, to); err != nil {
				return err
			}
		}
		if err := s.couponRepo.Save(ctx, tx, coupon); err != nil {
			return err
		}
		if eventType != "" {
			event := &CouponEvent{
				CouponID: coupon.ID,
				CoupleID: coupon.CoupleID,
				FromID:   coupon.FromID,
				Status:   coupon.Status,
			}
			if coupon.ToID != nil {
				event.ToID = *coupon.ToID
			}
			if err := s.outboxRepo.Enqueue(ctx, tx, eventType, event); err != nil {
				return err
			}
		}
		updated = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}

	if eventType != "" {
		s.log.WithFields(logrus.Fields{
			"coupon_id": updated.ID,
			"status":    updated.Status,
		}).Info("券状态已更新")
	}
	return updated, nil
}

// checkRecipient 接收人必须是券所属关系中发出方的伴侣
func (s *CouponService) checkRecipient(ctx context.Context, tx *gorm.DB, coupleID, fromID, toID string) error {
	couple, err := s.coupleRepo.Get(ctx, tx, coupleID)
	if err != nil {
		return err
	}
	if couple.PartnerOf(fromID) != toID {
		return ErrRecipientNotPartner
	}
	return nil
}

func recipientOf(c *model.Coupon) string {
	if c.ToID == nil {
		return ""
	}
	return *c.ToID
}
