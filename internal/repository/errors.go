package repository

import (
	"couplesystem/internal/errs"
)

var (
	ErrAccountNotFound    = errs.Domain(errs.CodeAccountNotFound, "账户不存在")
	ErrInviteCodeNotFound = errs.Domain(errs.CodeInviteCodeNotFound, "邀请码不存在")
	ErrCoupleNotFound     = errs.Domain(errs.CodeCoupleNotFound, "关系不存在")
	ErrCouponNotFound     = errs.Domain(errs.CodeCouponNotFound, "券不存在")
	ErrBoardNotFound      = errs.Domain(errs.CodeBoardNotFound, "目标板不存在")
	ErrListingNotFound    = errs.Domain(errs.CodeListingNotFound, "商品不存在")
)
