package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"couplesystem/internal/errs"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusOf(errs.Validation("bad")))
	require.Equal(t, http.StatusBadRequest, StatusOf(errors.Wrap(errs.Domain(errs.CodeBalanceNotEnough, "余额不足"), "扣减")))
	require.Equal(t, http.StatusUnauthorized, StatusOf(errs.Domain(errs.CodeUnauthorized, "未登录")))
	require.Equal(t, http.StatusServiceUnavailable, StatusOf(errs.Transient("busy")))
	require.Equal(t, http.StatusInternalServerError, StatusOf(errs.Fatal("boom")))
	require.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("driver exploded")))
}

func TestErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, errs.CodeServerError, body.Code)
	require.Equal(t, "服务器内部错误", body.Message)
}
