package idempotency

import (
	"context"
	"fmt"
	"time"

	"couplesystem/internal/errs"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 请求去重
// ============================================================================
//
// 加积分（credit）每次调用都会无条件增加余额，客户端超时后整体重试会重复入账。
// 对带 X-Request-ID 的请求：
//
//   占位：SET key owner NX EX ttl
//     - NX 保证同一请求ID只有第一次能占位
//     - EX 让占位在 ttl 后自动过期
//   操作失败：用 Lua 脚本校验 owner 后删除，允许客户端用同一个请求ID重试
//   操作成功：保留占位，ttl 内的重复请求直接拒绝
//
// 扣积分、兑换邀请码、券状态流转都会在事务内重新校验状态，重试天然安全，不需要占位。
//
// ============================================================================

var (
	ErrDuplicateRequest = errs.Domain(errs.CodeDuplicateRequest, "重复请求")
	ErrUnavailable      = errs.Transient("去重服务暂不可用，请稍后重试")
)

const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// Guard 基于 Redis 的请求去重
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

// Key 同一账户、同一操作下的请求ID构成去重键
func Key(scope, accountID, requestID string) string {
	return fmt.Sprintf("idem:%s:%s:%s", scope, accountID, requestID)
}

// Acquire 占位成功返回 nil，已存在返回 ErrDuplicateRequest
func (g *Guard) Acquire(ctx context.Context, key, owner string) error {
	ok, err := g.client.SetNX(ctx, key, owner, g.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Release 只删除自己占的位，避免过期后删掉别人的占位
func (g *Guard) Release(ctx context.Context, key, owner string) error {
	_, err := g.client.Eval(ctx, releaseScript, []string{key}, owner).Result()
	return err
}
