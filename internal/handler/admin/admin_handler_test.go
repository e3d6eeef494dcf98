package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/jwt"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/middleware"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/distribution"
	"github.com/dumeirei/referral-settlement/internal/service/finance"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/internal/testutil"
	"github.com/dumeirei/referral-settlement/pkg/wechatpay"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	orders []int64
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, orderID, _ int64) error {
	p.orders = append(p.orders, orderID)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	jwt       *jwt.Manager
	db        *gorm.DB
	ledger    *wallet.Ledger
	withdraw  *distribution.WithdrawService
	publisher *recordingPublisher
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLite(t)

	memberRepo := repository.NewMemberRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	ledger := wallet.NewLedger(db, repository.NewWalletRepository(db), repository.NewWalletTransactionRepository(db))
	auditSvc := finance.NewWithdrawalAuditService(db, withdrawalRepo, memberRepo, ledger, wechatpay.NewMockClient())
	resolver := distribution.NewReferralResolver(db, memberRepo, distribution.DefaultMaxReferralDepth)
	publisher := &recordingPublisher{}

	jwtManager := jwt.NewManager(&jwt.Config{Secret: "test-secret", AccessExpireTime: time.Hour, Issuer: "test"})

	r := gin.New()
	group := r.Group("/api/v1/admin", middleware.AdminAuth(jwtManager))
	NewWithdrawalHandler(auditSvc).RegisterRoutes(group)
	NewMemberHandler(resolver, publisher).RegisterRoutes(group)

	return &testEnv{
		router:    r,
		jwt:       jwtManager,
		db:        db,
		ledger:    ledger,
		withdraw:  distribution.NewWithdrawService(db, withdrawalRepo, ledger, nil),
		publisher: publisher,
	}
}

func (e *testEnv) do(t *testing.T, method, path, userType string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	data := []byte{}
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	token, _, err := e.jwt.GenerateAccessToken(100, 1, userType, "finance")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (e *testEnv) createMember(t *testing.T, id int64, parentID *int64) {
	t.Helper()
	openID := fmt.Sprintf("openid-%d", id)
	require.NoError(t, e.db.Create(&models.Member{
		ID: id, TenantID: 1, OpenID: &openID, ParentID: parentID, Status: models.MemberStatusActive,
	}).Error)
}

func (e *testEnv) applyWithdrawal(t *testing.T, memberID int64) *models.Withdrawal {
	t.Helper()
	ctx := context.Background()
	_, err := e.ledger.AddBalance(ctx, wallet.Change{
		MemberID: memberID, TenantID: 1, Amount: decimal.NewFromInt(50), Type: models.TxTypeCommissionSettle,
	})
	require.NoError(t, err)
	w, err := e.withdraw.Apply(ctx, &distribution.ApplyRequest{
		MemberID: memberID, TenantID: 1, Amount: decimal.NewFromInt(30), Method: models.WithdrawMethodWechat,
	})
	require.NoError(t, err)
	return w
}

func TestWithdrawalHandler_Audit(t *testing.T) {
	env := setupTestEnv(t)
	env.createMember(t, 1, nil)
	env.createMember(t, 2, nil)
	approve := env.applyWithdrawal(t, 1)
	reject := env.applyWithdrawal(t, 2)

	t.Run("会员令牌无权访问", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/v1/admin/withdrawals", jwt.UserTypeUser, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("无效的审核动作", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/audit", approve.ID), jwt.UserTypeAdmin,
			map[string]string{"action": "PAY"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("审核通过", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/audit", approve.ID), jwt.UserTypeAdmin,
			map[string]string{"action": models.AuditActionApprove})
		require.Equal(t, 0, resp.Code, resp.Message)
		assert.Equal(t, models.WithdrawalStatusApproved, resp.Data.(map[string]interface{})["status"])

		info, err := env.ledger.Snapshot(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, info.Frozen.IsZero())
		assert.True(t, info.Balance.Equal(decimal.NewFromInt(20)))
	})

	t.Run("驳回", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/audit", reject.ID), jwt.UserTypeAdmin,
			map[string]string{"action": models.AuditActionReject, "remark": "资料不全"})
		require.Equal(t, 0, resp.Code, resp.Message)

		info, err := env.ledger.Snapshot(context.Background(), 2)
		require.NoError(t, err)
		assert.True(t, info.Balance.Equal(decimal.NewFromInt(50)))
	})

	t.Run("重复审核返回状态错误", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/audit", reject.ID), jwt.UserTypeAdmin,
			map[string]string{"action": models.AuditActionApprove})
		assert.Equal(t, errors.ErrWithdrawalStatus.Code, resp.Code)
	})

	t.Run("按状态筛选", func(t *testing.T) {
		_, resp := env.do(t, http.MethodGet, "/api/v1/admin/withdrawals?status=REJECTED", jwt.UserTypeAdmin, nil)
		require.Equal(t, 0, resp.Code)
		assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["total"])
	})
}

func TestMemberHandler_BindParent(t *testing.T) {
	env := setupTestEnv(t)
	env.createMember(t, 1, nil)
	env.createMember(t, 2, ptr(1))
	env.createMember(t, 3, nil)

	t.Run("绑定上级并写入间接上级", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, "/api/v1/admin/members/3/bind", jwt.UserTypeAdmin, map[string]int64{"parent_id": 2})
		require.Equal(t, 0, resp.Code, resp.Message)

		var m models.Member
		require.NoError(t, env.db.First(&m, 3).Error)
		require.NotNil(t, m.ParentID)
		assert.Equal(t, int64(2), *m.ParentID)
		require.NotNil(t, m.IndirectParentID)
		assert.Equal(t, int64(1), *m.IndirectParentID)
	})

	t.Run("拒绝成环", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, "/api/v1/admin/members/1/bind", jwt.UserTypeAdmin, map[string]int64{"parent_id": 3})
		assert.Equal(t, errors.ErrReferralCycle.Code, resp.Code)
	})

	t.Run("拒绝自绑", func(t *testing.T) {
		_, resp := env.do(t, http.MethodPost, "/api/v1/admin/members/1/bind", jwt.UserTypeAdmin, map[string]int64{"parent_id": 1})
		assert.Equal(t, errors.ErrReferralSelfBind.Code, resp.Code)
	})
}

func TestMemberHandler_Recalculate(t *testing.T) {
	env := setupTestEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/v1/admin/orders/42/commissions/recalculate", jwt.UserTypeAdmin, nil)
	require.Equal(t, 0, resp.Code)
	assert.Equal(t, []int64{42}, env.publisher.orders)
}

func ptr(v int64) *int64 {
	return &v
}
