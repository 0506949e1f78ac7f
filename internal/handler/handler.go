package handler

import (
	"context"
	"io"
	"strconv"

	"couplesystem/internal/errs"
	"couplesystem/internal/infrastructure/idempotency"
	"couplesystem/internal/infrastructure/metrics"
	"couplesystem/internal/model"
	"couplesystem/internal/service"
	"couplesystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Services 处理器依赖的全部服务，Guard 为空时不做请求去重
type Services struct {
	Identity *service.IdentityService
	Pairing  *service.PairingService
	Ledger   *service.LedgerService
	Coupons  *service.CouponService
	Boards   *service.GoalBoardService
	Shop     *service.ShopService
	Guard    *idempotency.Guard
}

// Handler 统一处理器：解析参数 -> 调用一次服务 -> 按错误分类返回
type Handler struct {
	identity *service.IdentityService
	pairing  *service.PairingService
	ledger   *service.LedgerService
	coupons  *service.CouponService
	boards   *service.GoalBoardService
	shop     *service.ShopService
	guard    *idempotency.Guard
	log      *logrus.Logger
}

func NewHandler(svc *Services, log *logrus.Logger) *Handler {
	return &Handler{
		identity: svc.Identity,
		pairing:  svc.Pairing,
		ledger:   svc.Ledger,
		coupons:  svc.Coupons,
		boards:   svc.Boards,
		shop:     svc.Shop,
		guard:    svc.Guard,
		log:      log,
	}
}

func accountID(c *gin.Context) string {
	return c.GetString(ctxAccountID)
}

// respond 成功返回 data，失败按错误分类映射 HTTP 状态码
func (h *Handler) respond(c *gin.Context, data interface{}, err error) {
	if err == nil {
		response.Success(c, data)
		return
	}

	kind := errs.KindOf(err)
	metrics.OperationErrors.WithLabelValues(kind.String()).Inc()
	if kind == errs.KindTransient || kind == errs.KindFatal {
		h.log.WithError(err).WithFields(logrus.Fields{
			"account_id": accountID(c),
			"path":       c.FullPath(),
			"kind":       kind.String(),
		}).Error("请求处理失败")
	}
	response.Error(c, err)
}

// withIdempotency 带 X-Request-ID 的请求先占位，同一请求ID在有效期内只执行一次；
// 操作失败时释放占位，允许客户端用同一个请求ID重试
func (h *Handler) withIdempotency(c *gin.Context, scope string, fn func() (interface{}, error)) {
	requestID := c.GetHeader("X-Request-ID")
	if h.guard == nil || requestID == "" {
		data, err := fn()
		h.respond(c, data, err)
		return
	}

	ctx := c.Request.Context()
	key := idempotency.Key(scope, accountID(c), requestID)
	owner := uuid.NewString()
	if err := h.guard.Acquire(ctx, key, owner); err != nil {
		if !errors.Is(err, idempotency.ErrDuplicateRequest) {
			h.log.WithError(err).WithField("key", key).Warn("请求去重占位失败")
			err = idempotency.ErrUnavailable
		}
		h.respond(c, nil, err)
		return
	}

	data, err := fn()
	if err != nil {
		if releaseErr := h.guard.Release(context.Background(), key, owner); releaseErr != nil {
			h.log.WithError(releaseErr).WithField("key", key).Warn("释放去重占位失败")
		}
	}
	h.respond(c, data, err)
}

// bindOptionalJSON 请求体可以为空，非空时必须是合法的 JSON；
// 返回 false 时已经写回参数错误
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}

// activeCoupleID 请求未指定关系时使用当前账户的关系
func (h *Handler) activeCoupleID(c *gin.Context, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	account, err := h.identity.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		return "", err
	}
	if account.ActiveCoupleID == nil {
		return "", service.ErrNotPaired
	}
	return *account.ActiveCoupleID, nil
}

// ============================================================
// 账户相关接口
// ============================================================

// GetAccount 查询当前账户
// GET /api/v1/account
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.identity.GetAccount(c.Request.Context(), accountID(c))
	h.respond(c, account, err)
}

// UpdateProfile 修改昵称和偏好
// PUT /api/v1/account/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	account, err := h.identity.UpdateProfile(c.Request.Context(), accountID(c), &req)
	h.respond(c, account, err)
}

// ============================================================
// 配对相关接口
// ============================================================

type redeemRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// Redeem 兑换邀请码建立关系
// POST /api/v1/pair/create
func (h *Handler) Redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.pairing.Redeem(c.Request.Context(), req.InviteCode, accountID(c))
	h.respond(c, result, err)
}

type coupleRequest struct {
	CoupleID string `json:"couple_id"`
}

// Dissolve 解除关系
// POST /api/v1/pair/dissolve
func (h *Handler) Dissolve(c *gin.Context) {
	var req coupleRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	coupleID, err := h.activeCoupleID(c, req.CoupleID)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	err = h.pairing.Dissolve(c.Request.Context(), coupleID, accountID(c))
	h.respond(c, gin.H{"couple_id": coupleID, "status": model.CoupleStatusEnded}, err)
}

type reconnectRequest struct {
	PartnerID        string `json:"partner_id" binding:"required"`
	PreviousCoupleID string `json:"previous_couple_id" binding:"required"`
}

// Reconnect 与曾经的伴侣重新建立关系
// POST /api/v1/pair/reconnect
func (h *Handler) Reconnect(c *gin.Context) {
	var req reconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.pairing.Reconnect(c.Request.Context(), accountID(c), req.PartnerID, req.PreviousCoupleID)
	h.respond(c, result, err)
}

// Pause 暂停关系
// POST /api/v1/pair/pause
func (h *Handler) Pause(c *gin.Context) {
	h.toggleCouple(c, h.pairing.Pause)
}

// Resume 恢复关系
// POST /api/v1/pair/resume
func (h *Handler) Resume(c *gin.Context) {
	h.toggleCouple(c, h.pairing.Resume)
}

func (h *Handler) toggleCouple(c *gin.Context, op func(ctx context.Context, coupleID, requesterID string) (*model.Couple, error)) {
	var req coupleRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	coupleID, err := h.activeCoupleID(c, req.CoupleID)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	couple, err := op(c.Request.Context(), coupleID, accountID(c))
	h.respond(c, couple, err)
}

// GetCouple 查询当前关系
// GET /api/v1/pair/couple
func (h *Handler) GetCouple(c *gin.Context) {
	coupleID, err := h.activeCoupleID(c, c.Query("couple_id"))
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	couple, err := h.pairing.GetCouple(c.Request.Context(), coupleID, accountID(c))
	h.respond(c, couple, err)
}

// GetInviteCode 获取自己的邀请码
// GET /api/v1/pair/invite-code
func (h *Handler) GetInviteCode(c *gin.Context) {
	code, err := h.identity.EnsureInviteCode(c.Request.Context(), accountID(c))
	h.respond(c, gin.H{"invite_code": code}, err)
}

// RegenerateInviteCode 作废旧码并生成新码
// POST /api/v1/pair/invite-code/regenerate
func (h *Handler) RegenerateInviteCode(c *gin.Context) {
	code, err := h.identity.RegenerateInviteCode(c.Request.Context(), accountID(c))
	h.respond(c, gin.H{"invite_code": code}, err)
}

// ============================================================
// 积分相关接口
// ============================================================

type pointsRequest struct {
	Amount   int64                `json:"amount"`
	Reason   string               `json:"reason"`
	CoupleID string               `json:"couple_id"`
	Metadata *model.EntryMetadata `json:"metadata"`
}

func (r *pointsRequest) mutation(accountID string, currency model.Currency) service.Mutation {
	m := service.Mutation{
		AccountID: accountID,
		Currency:  currency,
		Amount:    r.Amount,
		Reason:    model.Reason(r.Reason),
	}
	if r.Metadata != nil {
		m.Metadata = *r.Metadata
	}
	if r.CoupleID != "" {
		m.Metadata.CoupleID = r.CoupleID
	}
	return m
}

// SpendGrapes POST /api/v1/grapes/spend
func (h *Handler) SpendGrapes(c *gin.Context) { h.spend(c, model.CurrencyPrimary) }

// EarnGrapes POST /api/v1/grapes/earn
func (h *Handler) EarnGrapes(c *gin.Context) { h.earn(c, model.CurrencyPrimary) }

// SpendPraise POST /api/v1/praise/spend
func (h *Handler) SpendPraise(c *gin.Context) { h.spend(c, model.CurrencySocial) }

// EarnPraise POST /api/v1/praise/earn
func (h *Handler) EarnPraise(c *gin.Context) { h.earn(c, model.CurrencySocial) }

func (h *Handler) spend(c *gin.Context, currency model.Currency) {
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.ledger.Debit(c.Request.Context(), req.mutation(accountID(c), currency))
	h.respond(c, result, err)
}

// earn 入账按请求ID去重
func (h *Handler) earn(c *gin.Context, currency model.Currency) {
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	h.withIdempotency(c, "credit:"+string(currency), func() (interface{}, error) {
		return h.ledger.Credit(c.Request.Context(), req.mutation(accountID(c), currency))
	})
}

// ListLedger 查询流水，带 couple_id 时查询关系下的全部流水
// GET /api/v1/ledger?couple_id=xxx&page=1&page_size=20
func (h *Handler) ListLedger(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.ledger.ListEntries(c.Request.Context(), accountID(c), c.Query("couple_id"), page, size)
	h.respond(c, result, err)
}
