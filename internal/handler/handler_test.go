package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"couplesystem/internal/errs"
	"couplesystem/internal/infrastructure/idempotency"
	"couplesystem/internal/service"
	"couplesystem/internal/store"
	"couplesystem/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newTestServerWithGuard(t, idempotency.NewGuard(client, time.Minute))
}

// newTestServerWithGuard guard 为空时不做请求去重
func newTestServerWithGuard(t *testing.T, guard *idempotency.Guard) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.NewLogger()
	cfg := testutil.Config()
	st := store.New(db, log, store.WithBackoff(0))

	ledger := service.NewLedgerService(st, log)
	coupons := service.NewCouponService(st, log)
	h := NewHandler(&Services{
		Identity: service.NewIdentityService(st, cfg, log),
		Pairing:  service.NewPairingService(st, cfg, log),
		Ledger:   ledger,
		Coupons:  coupons,
		Boards:   service.NewGoalBoardService(st, ledger, cfg, log),
		Shop:     service.NewShopService(st, ledger, coupons, log),
		Guard:    guard,
	}, log)

	auth := NewStaticTokenProvider(map[string]string{
		"token-alice": "alice",
		"token-bob":   "bob",
		"token-carol": "carol",
	})
	return &testServer{t: t, engine: SetupRouter(h, auth, log)}
}

func (s *testServer) do(method, path, token string, body interface{}, headers map[string]string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (s *testServer) decode(env envelope, out interface{}) {
	s.t.Helper()
	require.NoError(s.t, json.Unmarshal(env.Data, out))
}

// pair alice 生成邀请码，bob 兑换
func (s *testServer) pair() string {
	s.t.Helper()
	status, env := s.do(http.MethodGet, "/api/v1/pair/invite-code", "token-alice", nil, nil)
	require.Equal(s.t, http.StatusOK, status)
	var code struct {
		InviteCode string `json:"invite_code"`
	}
	s.decode(env, &code)

	status, env = s.do(http.MethodPost, "/api/v1/pair/create", "token-bob", gin.H{"invite_code": code.InviteCode}, nil)
	require.Equal(s.t, http.StatusOK, status, env.Message)
	var result service.RedeemResult
	s.decode(env, &result)
	require.Equal(s.t, "alice", result.PartnerID)
	return result.CoupleID
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/health", "", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(http.MethodGet, "/api/v1/account", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, errs.CodeUnauthorized, env.Code)

	status, _ = s.do(http.MethodGet, "/api/v1/account", "wrong", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(http.MethodGet, "/api/v1/account", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var account struct {
		ID string `json:"id"`
	}
	s.decode(env, &account)
	require.Equal(t, "alice", account.ID)
}

func TestPairingEndpoints(t *testing.T) {
	s := newTestServer(t)
	coupleID := s.pair()

	status, env := s.do(http.MethodGet, "/api/v1/pair/couple", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var couple struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.decode(env, &couple)
	require.Equal(t, coupleID, couple.ID)

	status, env = s.do(http.MethodGet, "/api/v1/pair/invite-code", "token-carol", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var code struct {
		InviteCode string `json:"invite_code"`
	}
	s.decode(env, &code)

	status, env = s.do(http.MethodPost, "/api/v1/pair/create", "token-alice", gin.H{"invite_code": code.InviteCode}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeAlreadyPaired, env.Code)
	require.NotEmpty(t, env.Message)

	status, _ = s.do(http.MethodPost, "/api/v1/pair/pause", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodPost, "/api/v1/pair/resume", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/pair/dissolve", "token-alice", gin.H{"couple_id": coupleID}, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/api/v1/pair/dissolve", "token-alice", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeCoupleNotFound, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/pair/reconnect", "token-bob", gin.H{
		"partner_id":         "alice",
		"previous_couple_id": coupleID,
	}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
}

func TestPointsEndpoints(t *testing.T) {
	s := newTestServer(t)
	reqID := map[string]string{"X-Request-ID": "req-1"}

	status, env := s.do(http.MethodPost, "/api/v1/grapes/earn", "token-alice", gin.H{"amount": 50, "reason": "daily_checkin"}, reqID)
	require.Equal(t, http.StatusOK, status, env.Message)
	var balance service.BalanceResult
	s.decode(env, &balance)
	require.EqualValues(t, 50, balance.NewBalance)

	status, env = s.do(http.MethodPost, "/api/v1/grapes/earn", "token-alice", gin.H{"amount": 50, "reason": "daily_checkin"}, reqID)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeDuplicateRequest, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/grapes/spend", "token-alice", gin.H{"amount": 100, "reason": "gift"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeBalanceNotEnough, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/grapes/spend", "token-alice", gin.H{"amount": 0, "reason": "gift"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeParamError, env.Code)

	failedID := map[string]string{"X-Request-ID": "req-2"}
	status, _ = s.do(http.MethodPost, "/api/v1/praise/earn", "token-alice", gin.H{"amount": 2, "reason": "lottery"}, failedID)
	require.Equal(t, http.StatusBadRequest, status)
	status, env = s.do(http.MethodPost, "/api/v1/praise/earn", "token-alice", gin.H{"amount": 2, "reason": "praise_received"}, failedID)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/v1/grapes/spend", "token-alice", gin.H{"amount": 20, "reason": "gift"}, nil)
	require.Equal(t, http.StatusOK, status)
	s.decode(env, &balance)
	require.EqualValues(t, 30, balance.NewBalance)

	status, env = s.do(http.MethodGet, "/api/v1/ledger", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var list service.ListEntriesResult
	s.decode(env, &list)
	require.EqualValues(t, 3, list.Total)
}

func TestCouponEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.pair()

	status, env := s.do(http.MethodPost, "/api/v1/coupons", "token-alice", gin.H{"title": "Back rub"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var coupon struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.decode(env, &coupon)

	status, _ = s.do(http.MethodPut, "/api/v1/coupons/"+coupon.ID, "token-alice", gin.H{"description": "ten minutes"}, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/api/v1/coupons/"+coupon.ID+"/send", "token-alice", gin.H{"to_id": "bob"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/v1/coupons/"+coupon.ID+"/use", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	s.decode(env, &coupon)
	require.Equal(t, "USED", coupon.Status)

	status, env = s.do(http.MethodPost, "/api/v1/coupons/"+coupon.ID+"/use", "token-bob", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeCouponStatus, env.Code)

	status, _ = s.do(http.MethodPost, "/api/v1/coupons/"+coupon.ID+"/undo", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodDelete, "/api/v1/coupons/"+coupon.ID, "token-alice", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeCouponStatus, env.Code)

	status, env = s.do(http.MethodGet, "/api/v1/coupons", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Coupons []json.RawMessage `json:"coupons"`
	}
	s.decode(env, &list)
	require.Len(t, list.Coupons, 1)
}

func TestBoardAndShopEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.pair()

	status, env := s.do(http.MethodPost, "/api/v1/boards", "token-alice", gin.H{"title": "Cook together", "goal": 2, "per_success": 1}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var board struct {
		ID string `json:"id"`
	}
	s.decode(env, &board)

	status, _ = s.do(http.MethodPost, "/api/v1/boards/"+board.ID+"/advance", "token-bob", nil, map[string]string{"X-Request-ID": "adv-1"})
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodPost, "/api/v1/boards/"+board.ID+"/advance", "token-bob", nil, map[string]string{"X-Request-ID": "adv-1"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeDuplicateRequest, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/boards/"+board.ID+"/advance", "token-bob", gin.H{"by_amount": 1}, map[string]string{"X-Request-ID": "adv-2"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var advanced service.AdvanceResult
	s.decode(env, &advanced)
	require.True(t, advanced.JustCompleted)
	require.EqualValues(t, 50, advanced.BonusAwarded)

	status, env = s.do(http.MethodPost, "/api/v1/boards/"+board.ID+"/advance", "token-bob", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeBoardCompleted, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/shop/listings", "token-alice", gin.H{"title": "Breakfast", "price_in_primary": 40}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var listing struct {
		ID string `json:"id"`
	}
	s.decode(env, &listing)

	status, env = s.do(http.MethodPost, "/api/v1/shop/listings/"+listing.ID+"/purchase", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var purchase service.PurchaseResult
	s.decode(env, &purchase)
	require.EqualValues(t, 10, purchase.NewBalance)

	status, env = s.do(http.MethodPost, "/api/v1/shop/listings/"+listing.ID+"/purchase", "token-bob", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeBalanceNotEnough, env.Code)

	status, _ = s.do(http.MethodPost, "/api/v1/shop/listings/"+listing.ID+"/deactivate", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/api/v1/shop/listings", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var listings struct {
		Listings []json.RawMessage `json:"listings"`
	}
	s.decode(env, &listings)
	require.Empty(t, listings.Listings)
}

func TestMalformedOptionalBodyRejected(t *testing.T) {
	s := newTestServer(t)
	coupleID := s.pair()

	status, env := s.do(http.MethodPost, "/api/v1/boards", "token-alice", gin.H{"title": "Walk the dog", "goal": 10, "per_success": 4}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var board struct {
		ID string `json:"id"`
	}
	s.decode(env, &board)

	status, env = s.do(http.MethodPost, "/api/v1/boards/"+board.ID+"/advance", "token-bob", gin.H{"by_amount": "oops"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeParamError, env.Code)

	status, env = s.do(http.MethodGet, "/api/v1/boards", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var boards struct {
		Boards []struct {
			Progress int `json:"progress"`
		} `json:"boards"`
	}
	s.decode(env, &boards)
	require.Len(t, boards.Boards, 1)
	require.Equal(t, 0, boards.Boards[0].Progress)

	status, env = s.do(http.MethodPost, "/api/v1/coupons", "token-alice", gin.H{"title": "Movie night"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var coupon struct {
		ID string `json:"id"`
	}
	s.decode(env, &coupon)
	status, env = s.do(http.MethodPost, "/api/v1/coupons/"+coupon.ID+"/send", "token-alice", gin.H{"to_id": 42}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.CodeParamError, env.Code)

	for _, path := range []string{"/api/v1/pair/pause", "/api/v1/pair/dissolve"} {
		status, env = s.do(http.MethodPost, path, "token-alice", gin.H{"couple_id": true}, nil)
		require.Equal(t, http.StatusBadRequest, status, path)
		require.Equal(t, errs.CodeParamError, env.Code, path)
	}

	status, env = s.do(http.MethodGet, "/api/v1/pair/couple", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var couple struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.decode(env, &couple)
	require.Equal(t, coupleID, couple.ID)
	require.Equal(t, "ACTIVE", couple.Status)
}

func TestEarnWithoutGuardIsNotDeduplicated(t *testing.T) {
	s := newTestServerWithGuard(t, nil)
	reqID := map[string]string{"X-Request-ID": "req-1"}

	for i := 1; i <= 2; i++ {
		status, env := s.do(http.MethodPost, "/api/v1/grapes/earn", "token-alice", gin.H{"amount": 10, "reason": "daily_checkin"}, reqID)
		require.Equal(t, http.StatusOK, status, env.Message)
		var balance service.BalanceResult
		s.decode(env, &balance)
		require.EqualValues(t, 10*i, balance.NewBalance)
	}
}
