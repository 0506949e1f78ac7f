package service

import (
	"context"
	"testing"

	"couplesystem/internal/errs"
	"couplesystem/internal/model"

	"github.com/stretchr/testify/require"
)

func TestEnsureAccountIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.identity.EnsureAccount(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(0), first.PrimaryBalance)
	require.Nil(t, first.ActiveCoupleID)

	env.fund(t, "alice", 30)
	second, err := env.identity.EnsureAccount(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(30), second.PrimaryBalance)

	_, err = env.identity.EnsureAccount(ctx, "")
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestGetAccountMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.identity.GetAccount(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrAccountMissing)
	require.Equal(t, errs.KindDomain, errs.KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "alice")

	name := "Alice"
	account, err := env.identity.UpdateProfile(context.Background(), "alice", &UpdateProfileRequest{
		DisplayName: &name,
		Preferences: map[string]interface{}{"love_language": "gifts"},
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", account.DisplayName)

	reloaded := env.reload(t, "alice")
	require.Equal(t, "Alice", reloaded.DisplayName)
	require.Equal(t, "gifts", reloaded.Preferences["love_language"])
}

func TestEnsureInviteCodeStable(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "alice")
	ctx := context.Background()

	code, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Regexp(t, `^MALL-[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}$`, code)

	again, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, code, again)

	require.Equal(t, code, *env.reload(t, "alice").OwnInviteCode)
}

func TestEnsureInviteCodeRetriesCollision(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "alice")
	env.account(t, "bob")
	ctx := context.Background()

	env.identity.generate = fixedCodes("MALL-AAAA")
	code, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "MALL-AAAA", code)

	env.identity.generate = fixedCodes("MALL-AAAA", "MALL-AAAA", "MALL-BBBB")
	code, err = env.identity.EnsureInviteCode(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "MALL-BBBB", code)
}

func TestEnsureInviteCodeExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "alice")
	env.account(t, "bob")
	ctx := context.Background()

	env.identity.generate = fixedCodes("MALL-AAAA")
	_, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)

	_, err = env.identity.EnsureInviteCode(ctx, "bob")
	require.ErrorIs(t, err, ErrInviteCodeExhausted)
	require.Equal(t, errs.KindTransient, errs.KindOf(err))
	require.Nil(t, env.reload(t, "bob").OwnInviteCode)
}

func TestRegenerateInviteCode(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "alice")
	env.account(t, "bob")
	ctx := context.Background()

	env.identity.generate = fixedCodes("MALL-AAAA", "MALL-BBBB")
	old, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)

	fresh, err := env.identity.RegenerateInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "MALL-BBBB", fresh)

	var invite model.InviteCode
	require.NoError(t, env.db.Where("code = ?", old).First(&invite).Error)
	require.False(t, invite.Active)
	require.Nil(t, invite.RedeemedByID)

	_, err = env.pairing.Redeem(ctx, old, "bob")
	require.ErrorIs(t, err, ErrInviteCodeUsed)
}

func TestEnsureInviteCodeAfterRedemption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.identity.generate = fixedCodes("MALL-AAAA", "MALL-CCCC")

	coupleID := env.pair(t, "alice", "bob")
	require.NoError(t, env.pairing.Dissolve(ctx, coupleID, "alice"))

	code, err := env.identity.EnsureInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "MALL-AAAA", code)

	code, err = env.identity.RegenerateInviteCode(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "MALL-CCCC", code)
}
