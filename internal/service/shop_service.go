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

// PurchaseEvent 商店购买事件
type PurchaseEvent struct {
	ListingID string `json:"listing_id"`
	CouponID  string `json:"coupon_id"`
	CoupleID  string `json:"couple_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Price     int64  `json:"price"`
}

type ShopService struct {
	store       *store.Store
	log         *logrus.Logger
	ledger      *LedgerService
	coupons     *CouponService
	accountRepo *repository.AccountRepository
	coupleRepo  *repository.CoupleRepository
	listingRepo *repository.ShopListingRepository
	outboxRepo  *repository.OutboxRepository
}

func NewShopService(st *store.Store, ledger *LedgerService, coupons *CouponService, log *logrus.Logger) *ShopService {
	return &ShopService{
		store:       st,
		log:         log,
		ledger:      ledger,
		coupons:     coupons,
		accountRepo: repository.NewAccountRepository(st.DB()),
		coupleRepo:  repository.NewCoupleRepository(st.DB()),
		listingRepo: repository.NewShopListingRepository(st.DB()),
		outboxRepo:  repository.NewOutboxRepository(st.DB()),
	}
}

type CreateListingRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	PriceInPrimary int64      `json:"price_in_primary"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// CreateListing 上架一个券模板，伴侣可以用葡萄购买
func (s *ShopService) CreateListing(ctx context.Context, ownerID string, req *CreateListingRequest) (*model.ShopListing, error) {
	if ownerID == "" {
		return nil, ErrInvalidAccount
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrInvalidTitle
	}
	if req.PriceInPrimary <= 0 {
		return nil, ErrInvalidAmount
	}

	var created *model.ShopListing
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		created = nil
		account, err := s.accountRepo.Get(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if account.ActiveCoupleID == nil {
			return ErrNotPaired
		}
		listing := &model.ShopListing{
			ID:             uuid.NewString(),
			CoupleID:       *account.ActiveCoupleID,
			OwnerID:        ownerID,
			Title:          strings.TrimSpace(req.Title),
			Description:    req.Description,
			PriceInPrimary: req.PriceInPrimary,
			ExpiresAt:      req.ExpiresAt,
			Active:         true,
		}
		if err := s.listingRepo.Create(ctx, tx, listing); err != nil {
			return err
		}
		created = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeactivateListing 下架，已售出的券不受影响
func (s *ShopService) DeactivateListing(ctx context.Context, listingID, actorID string) error {
	return s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		listing, err := s.listingRepo.Get(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.OwnerID != actorID {
			return ErrListingOwner
		}
		return s.listingRepo.Deactivate(ctx, tx, listingID)
	})
}

// ListListings 请求人当前关系下的商品
func (s *ShopService) ListListings(ctx context.Context, accountID string, activeOnly bool) ([]*model.ShopListing, error) {
	account, err := s.accountRepo.Get(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}
	if account.ActiveCoupleID == nil {
		return []*model.ShopListing{}, nil
	}
	return s.listingRepo.ListByCouple(ctx, *account.ActiveCoupleID, activeOnly)
}

type PurchaseResult struct {
	Coupon     *model.Coupon `json:"coupon"`
	NewBalance int64         `json:"new_balance"`
}

// Purchase 扣减买家葡萄并生成一张发给买家的券，两者在同一事务内完成
func (s *ShopService) Purchase(ctx context.Context, listingID, buyerID string) (*PurchaseResult, error) {
	if buyerID == "" {
		return nil, ErrInvalidAccount
	}

	var (
		buyer    *model.Account
		coupon   *model.Coupon
		mutation Mutation
	)
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		buyer, coupon = nil, nil

		listing, err := s.listingRepo.Get(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !listing.Active {
			return ErrListingInactive
		}
		if listing.ExpiresAt != nil && !timeNow().Before(*listing.ExpiresAt) {
			return ErrListingInactive
		}
		if listing.OwnerID == buyerID {
			return ErrSelfPurchase
		}
		couple, err := s.coupleRepo.Get(ctx, tx, listing.CoupleID)
		if err != nil {
			return err
		}
		if !couple.HasMember(buyerID) {
			return ErrNotCoupleMember
		}

		mutation = Mutation{
			AccountID: buyerID,
			Currency:  model.CurrencyPrimary,
			Amount:    listing.PriceInPrimary,
			Reason:    model.ReasonShopPurchase,
			Metadata: model.EntryMetadata{
				CoupleID:  listing.CoupleID,
				ListingID: listing.ID,
				PartnerID: listing.OwnerID,
			},
		}
		buyer, err = s.ledger.DebitInTx(ctx, tx, mutation)
		if err != nil {
			return err
		}

		coupon, err = s.coupons.IssueFromListing(ctx, tx, listing, buyerID)
		if err != nil {
			return err
		}
		mutation.Metadata.CouponID = coupon.ID

		return s.outboxRepo.Enqueue(ctx, tx, model.EventListingPurchase, &PurchaseEvent{
			ListingID: listing.ID,
			CouponID:  coupon.ID,
			CoupleID:  listing.CoupleID,
			BuyerID:   buyerID,
			SellerID:  listing.OwnerID,
			Price:     listing.PriceInPrimary,
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.AppendEntry(ctx, buyer, mutation, -mutation.Amount)

	s.log.WithFields(logrus.Fields{
		"listing_id": listingID,
		"coupon_id":  coupon.ID,
		"buyer_id":   buyerID,
		"price":      mutation.Amount,
	}).Info("商店购买成功")
	return &PurchaseResult{Coupon: coupon, NewBalance: buyer.PrimaryBalance}, nil
}
