package handler

import (
	"couplesystem/internal/service"
	"couplesystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 目标板相关接口
// ============================================================

// CreateBoard POST /api/v1/boards
func (h *Handler) CreateBoard(c *gin.Context) {
	var req service.CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	board, err := h.boards.Create(c.Request.Context(), accountID(c), &req)
	h.respond(c, board, err)
}

// ListBoards GET /api/v1/boards
func (h *Handler) ListBoards(c *gin.Context) {
	boards, err := h.boards.List(c.Request.Context(), accountID(c))
	h.respond(c, gin.H{"boards": boards}, err)
}

type advanceRequest struct {
	ByAmount int `json:"by_amount"`
}

// AdvanceBoard 推进进度，by_amount 不传或为 0 时按 per_success 推进
// POST /api/v1/boards/:id/advance
func (h *Handler) AdvanceBoard(c *gin.Context) {
	var req advanceRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.withIdempotency(c, "advance", func() (interface{}, error) {
		return h.boards.Advance(c.Request.Context(), c.Param("id"), req.ByAmount, accountID(c))
	})
}

// ============================================================
// 商店相关接口
// ============================================================

// CreateListing POST /api/v1/shop/listings
func (h *Handler) CreateListing(c *gin.Context) {
	var req service.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	listing, err := h.shop.CreateListing(c.Request.Context(), accountID(c), &req)
	h.respond(c, listing, err)
}

// ListListings GET /api/v1/shop/listings?active=true
func (h *Handler) ListListings(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") != "false"
	listings, err := h.shop.ListListings(c.Request.Context(), accountID(c), activeOnly)
	h.respond(c, gin.H{"listings": listings}, err)
}

// Purchase POST /api/v1/shop/listings/:id/purchase
func (h *Handler) Purchase(c *gin.Context) {
	result, err := h.shop.Purchase(c.Request.Context(), c.Param("id"), accountID(c))
	h.respond(c, result, err)
}

// DeactivateListing POST /api/v1/shop/listings/:id/deactivate
func (h *Handler) DeactivateListing(c *gin.Context) {
	err := h.shop.DeactivateListing(c.Request.Context(), c.Param("id"), accountID(c))
	h.respond(c, gin.H{"id": c.Param("id"), "active": false}, err)
}
