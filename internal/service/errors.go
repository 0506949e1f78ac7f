package service

import (
	"couplesystem/internal/errs"
	"couplesystem/internal/repository"
)

// 参数校验错误，在进入事务之前返回
var (
	ErrInvalidAccount    = errs.Validation("账户ID不能为空")
	ErrInvalidAmount     = errs.Validation("金额必须大于0")
	ErrInvalidCurrency   = errs.Validation("不支持的积分类型")
	ErrInvalidReason     = errs.Validation("不支持的变动原因")
	ErrInvalidInviteCode = errs.Validation("邀请码格式不正确")
	ErrInvalidTitle      = errs.Validation("标题不能为空")
	ErrInvalidGoal       = errs.Validation("目标值和单次进度必须大于0")
	ErrInvalidRecipient  = errs.Validation("券的接收人不能是自己")
	ErrMissingCoupleID   = errs.Validation("缺少关系ID")
)

// 业务错误，在事务内根据当前状态判断
var (
	ErrAccountMissing      = repository.ErrAccountNotFound
	ErrInsufficientBalance = errs.Domain(errs.CodeBalanceNotEnough, "余额不足")
	ErrBalanceOverflow     = errs.Domain(errs.CodeBalanceOverflow, "余额超出上限")

	ErrInviteCodeUsed      = errs.Domain(errs.CodeInviteCodeUsed, "邀请码已被使用")
	ErrSelfRedeem          = errs.Domain(errs.CodeSelfRedeem, "不能和自己配对")
	ErrAlreadyPaired       = errs.Domain(errs.CodeAlreadyPaired, "已有进行中的关系，请先解除")
	ErrNotPaired           = errs.Domain(errs.CodeCoupleNotFound, "尚未配对")
	ErrInviteCodeExhausted = &errs.Error{Kind: errs.KindTransient, Code: errs.CodeInviteCodeExhaust, Message: "邀请码生成冲突，请稍后重试"}

	ErrNotCoupleMember = errs.Domain(errs.CodeNotCoupleMember, "不是该关系的成员")
	ErrCoupleEnded     = errs.Domain(errs.CodeCoupleEnded, "关系已结束")
	ErrCoupleStatus    = errs.Domain(errs.CodeCoupleStatus, "关系当前状态不允许该操作")

	ErrCouponForbidden   = errs.Domain(errs.CodeCouponForbidden, "无权操作该券")
	ErrCouponNotDraft    = errs.Domain(errs.CodeCouponStatus, "券已发出，不能再修改")
	ErrCouponNotSent     = errs.Domain(errs.CodeCouponStatus, "券不是已发送状态")
	ErrCouponNotUsed     = errs.Domain(errs.CodeCouponStatus, "券不是已使用状态")
	ErrCouponPriced      = errs.Domain(errs.CodeCouponStatus, "有价券只能通过商店购买发放")
	ErrCouponNoRecipient = errs.Domain(errs.CodeCouponStatus, "券未指定接收人")
	ErrCouponExpired     = errs.Domain(errs.CodeCouponExpired, "券已过期")
	ErrCouponTransition  = errs.Domain(errs.CodeCouponStatus, "券状态流转不合法")

	ErrRecipientNotPartner = errs.Domain(errs.CodeCouponForbidden, "券只能发给当前关系的另一方")

	ErrBoardCompleted = errs.Domain(errs.CodeBoardCompleted, "目标已完成")

	ErrListingInactive = errs.Domain(errs.CodeListingInactive, "商品已下架")
	ErrListingOwner    = errs.Domain(errs.CodeForbidden, "只有上架人可以操作该商品")
	ErrSelfPurchase    = errs.Domain(errs.CodeForbidden, "不能购买自己上架的商品")
)
