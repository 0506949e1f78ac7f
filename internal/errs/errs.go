package errs

import (
	"github.com/pkg/errors"
)

// ============================================================================
// 错误分类
// ============================================================================
//
// Validation: 参数不合法，在进入事务之前拒绝
// Domain:     事务内读到的当前状态不允许该操作（余额不足、邀请码已用等），不自动重试
// Transient:  并发冲突超过重试上限或存储不可达，调用方可以整体重试
// Fatal:      配置/初始化错误，立即返回
//
// ============================================================================

type Kind int

const (
	KindFatal Kind = iota
	KindValidation
	KindDomain
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDomain:
		return "domain"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// 业务错误码
const (
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeServerError  = 500
	CodeUnavailable  = 503

	CodeAccountNotFound    = 1001
	CodeBalanceNotEnough   = 1002
	CodeDuplicateRequest   = 1003
	CodeBalanceOverflow    = 1004
	CodeInviteCodeNotFound = 1101
	CodeInviteCodeUsed     = 1102
	CodeSelfRedeem         = 1103
	CodeAlreadyPaired      = 1104
	CodeInviteCodeExhaust  = 1105
	CodeCoupleNotFound     = 1201
	CodeCoupleEnded        = 1202
	CodeNotCoupleMember    = 1203
	CodeCoupleStatus       = 1204
	CodeCouponNotFound     = 1301
	CodeCouponStatus       = 1302
	CodeCouponForbidden    = 1303
	CodeCouponExpired      = 1304
	CodeBoardNotFound      = 1401
	CodeBoardCompleted     = 1402
	CodeListingNotFound    = 1501
	CodeListingInactive    = 1502
)

// Error 携带分类、业务错误码和可读信息
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeParamError, Message: message}
}

func Domain(code int, message string) *Error {
	return &Error{Kind: KindDomain, Code: code, Message: message}
}

func Transient(message string) *Error {
	return &Error{Kind: KindTransient, Code: CodeUnavailable, Message: message}
}

func Fatal(message string) *Error {
	return &Error{Kind: KindFatal, Code: CodeServerError, Message: message}
}

// KindOf 返回错误所属分类，无法识别的错误视为 Fatal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// CodeOf 返回业务错误码
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServerError
}

// MessageOf 返回面向调用方的信息，非业务错误不暴露内部细节
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "服务器内部错误"
}
