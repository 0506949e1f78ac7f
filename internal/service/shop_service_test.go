package service

import (
	"context"
	"testing"
	"time"

	"couplesystem/internal/model"

	"github.com/stretchr/testify/require"
)

func TestPurchaseIssuesCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	coupleID := env.pair(t, "a", "b")
	env.fund(t, "b", 100)

	listing, err := env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Foot rub", PriceInPrimary: 30})
	require.NoError(t, err)
	require.True(t, listing.Active)

	res, err := env.shop.Purchase(ctx, listing.ID, "b")
	require.NoError(t, err)
	require.EqualValues(t, 70, res.NewBalance)
	require.Equal(t, model.CouponStatusSent, res.Coupon.Status)
	require.Equal(t, "a", res.Coupon.FromID)
	require.Equal(t, "b", *res.Coupon.ToID)
	require.Equal(t, listing.ID, *res.Coupon.ListingID)
	require.EqualValues(t, 30, res.Coupon.PriceInPrimary)
	require.Equal(t, coupleID, res.Coupon.CoupleID)

	used, err := env.coupons.Use(ctx, res.Coupon.ID, "b")
	require.NoError(t, err)
	require.Equal(t, model.CouponStatusUsed, used.Status)

	list, err := env.ledger.ListEntries(ctx, "b", "", 1, 10)
	require.NoError(t, err)
	require.Equal(t, model.ReasonShopPurchase, list.Entries[0].Reason)
	require.EqualValues(t, -30, list.Entries[0].Amount)
	require.Equal(t, res.Coupon.ID, list.Entries[0].Metadata.Data().CouponID)
	require.EqualValues(t, 1, env.outboxCount(t, model.EventListingPurchase))
}

func TestPurchaseInsufficientBalanceRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.pair(t, "a", "b")
	env.fund(t, "b", 10)

	listing, err := env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Dinner", PriceInPrimary: 30})
	require.NoError(t, err)

	_, err = env.shop.Purchase(ctx, listing.ID, "b")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.EqualValues(t, 10, env.reload(t, "b").PrimaryBalance)

	var coupons int64
	require.NoError(t, env.db.Model(&model.Coupon{}).Count(&coupons).Error)
	require.Zero(t, coupons)
}

func TestPurchaseRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.pair(t, "a", "b")
	env.account(t, "c")
	env.fund(t, "a", 100)
	env.fund(t, "c", 100)

	listing, err := env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Dance", PriceInPrimary: 10})
	require.NoError(t, err)

	_, err = env.shop.Purchase(ctx, listing.ID, "a")
	require.ErrorIs(t, err, ErrSelfPurchase)

	_, err = env.shop.Purchase(ctx, listing.ID, "c")
	require.ErrorIs(t, err, ErrNotCoupleMember)

	require.ErrorIs(t, env.shop.DeactivateListing(ctx, listing.ID, "b"), ErrListingOwner)
	require.NoError(t, env.shop.DeactivateListing(ctx, listing.ID, "a"))

	env.fund(t, "b", 100)
	_, err = env.shop.Purchase(ctx, listing.ID, "b")
	require.ErrorIs(t, err, ErrListingInactive)

	active, err := env.shop.ListListings(ctx, "b", true)
	require.NoError(t, err)
	require.Empty(t, active)
	all, err := env.shop.ListListings(ctx, "b", false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Free", PriceInPrimary: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPurchaseExpiredListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.pair(t, "a", "b")
	env.fund(t, "b", 100)

	past := time.Now().Add(-time.Hour)
	listing, err := env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Picnic", PriceInPrimary: 10, ExpiresAt: &past})
	require.NoError(t, err)

	_, err = env.shop.Purchase(ctx, listing.ID, "b")
	require.ErrorIs(t, err, ErrListingInactive)
	require.EqualValues(t, 100, env.reload(t, "b").PrimaryBalance)
}

func TestPricedCouponCannotBeSentDirectly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.pair(t, "a", "b")
	env.fund(t, "b", 50)

	listing, err := env.shop.CreateListing(ctx, "a", &CreateListingRequest{Title: "Cake", PriceInPrimary: 20})
	require.NoError(t, err)
	res, err := env.shop.Purchase(ctx, listing.ID, "b")
	require.NoError(t, err)

	_, err = env.coupons.Send(ctx, res.Coupon.ID, "a", nil)
	require.ErrorIs(t, err, ErrCouponPriced)
}
