package service

import (
	"context"
	"testing"

	"couplesystem/internal/model"
	"couplesystem/internal/store"
	"couplesystem/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	identity *IdentityService
	pairing  *PairingService
	ledger   *LedgerService
	coupons  *CouponService
	boards   *GoalBoardService
	shop     *ShopService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, testutil.NewDB(t))
}

func newTestEnvOn(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()
	log := testutil.NewLogger()
	cfg := testutil.Config()
	st := store.New(db, log, store.WithMaxAttempts(10), store.WithBackoff(0))

	ledger := NewLedgerService(st, log)
	coupons := NewCouponService(st, log)
	return &testEnv{
		db:       db,
		identity: NewIdentityService(st, cfg, log),
		pairing:  NewPairingService(st, cfg, log),
		ledger:   ledger,
		coupons:  coupons,
		boards:   NewGoalBoardService(st, ledger, cfg, log),
		shop:     NewShopService(st, ledger, coupons, log),
	}
}

// fixedCodes 依次返回给定的邀请码，用完后重复最后一个
func fixedCodes(codes ...string) func(string) string {
	i := 0
	return func(string) string {
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code
	}
}

func (e *testEnv) account(t *testing.T, id string) *model.Account {
	t.Helper()
	account, err := e.identity.EnsureAccount(context.Background(), id)
	require.NoError(t, err)
	return account
}

func (e *testEnv) reload(t *testing.T, id string) *model.Account {
	t.Helper()
	account, err := e.identity.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account
}

// pair 让 a 生成邀请码、b 兑换，返回关系ID
func (e *testEnv) pair(t *testing.T, a, b string) string {
	t.Helper()
	ctx := context.Background()
	e.account(t, a)
	e.account(t, b)
	code, err := e.identity.EnsureInviteCode(ctx, a)
	require.NoError(t, err)
	result, err := e.pairing.Redeem(ctx, code, b)
	require.NoError(t, err)
	return result.CoupleID
}

func (e *testEnv) fund(t *testing.T, id string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), Mutation{
		AccountID: id,
		Currency:  model.CurrencyPrimary,
		Amount:    amount,
		Reason:    model.ReasonAdjustment,
	})
	require.NoError(t, err)
}

func (e *testEnv) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.OutboxMessage{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}
