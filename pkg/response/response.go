package response

import (
	"net/http"

	"couplesystem/internal/errs"

	"github.com/gin-gonic/gin"
)

const CodeSuccess = 0

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 按错误分类决定 HTTP 状态码，body 中给出业务错误码和可读原因
func Error(c *gin.Context, err error) {
	c.JSON(StatusOf(err), Response{
		Code:    errs.CodeOf(err),
		Message: errs.MessageOf(err),
	})
}

func ParamError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    errs.CodeParamError,
		Message: message,
	})
}

func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    errs.CodeUnauthorized,
		Message: message,
	})
}

// StatusOf Validation/Domain -> 400，Transient -> 503，其余 -> 500
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindDomain:
		if errs.CodeOf(err) == errs.CodeUnauthorized {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case errs.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
