package handler

import (
	"couplesystem/internal/service"
	"couplesystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 券相关接口
// ============================================================

// CreateCoupon 创建草稿券
// POST /api/v1/coupons
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req service.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	coupon, err := h.coupons.Create(c.Request.Context(), accountID(c), &req)
	h.respond(c, coupon, err)
}

// ListCoupons 我发出和收到的券
// GET /api/v1/coupons
func (h *Handler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context(), accountID(c))
	h.respond(c, gin.H{"coupons": coupons}, err)
}

// EditCoupon 修改草稿
// PUT /api/v1/coupons/:id
func (h *Handler) EditCoupon(c *gin.Context) {
	var req service.EditCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	coupon, err := h.coupons.Edit(c.Request.Context(), c.Param("id"), accountID(c), &req)
	h.respond(c, coupon, err)
}

// DeleteCoupon 删除草稿
// DELETE /api/v1/coupons/:id
func (h *Handler) DeleteCoupon(c *gin.Context) {
	err := h.coupons.Delete(c.Request.Context(), c.Param("id"), accountID(c))
	h.respond(c, gin.H{"id": c.Param("id")}, err)
}

type sendCouponRequest struct {
	ToID *string `json:"to_id"`
}

// SendCoupon 发出券
// POST /api/v1/coupons/:id/send
func (h *Handler) SendCoupon(c *gin.Context) {
	var req sendCouponRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	coupon, err := h.coupons.Send(c.Request.Context(), c.Param("id"), accountID(c), req.ToID)
	h.respond(c, coupon, err)
}

// UseCoupon 使用券
// POST /api/v1/coupons/:id/use
func (h *Handler) UseCoupon(c *gin.Context) {
	coupon, err := h.coupons.Use(c.Request.Context(), c.Param("id"), accountID(c))
	h.respond(c, coupon, err)
}

// UndoCoupon 撤销使用
// POST /api/v1/coupons/:id/undo
func (h *Handler) UndoCoupon(c *gin.Context) {
	coupon, err := h.coupons.Undo(c.Request.Context(), c.Param("id"), accountID(c))
	h.respond(c, coupon, err)
}
