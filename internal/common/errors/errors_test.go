package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(1999, "测试")
	require.NotNil(t, err)
	assert.Equal(t, 1999, err.Code)
	assert.Equal(t, "测试", err.Message)
	assert.Nil(t, err.Err)
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "Error without underlying error",
			appError: ErrBalanceInsufficient,
			want:     "[3001] 余额不足",
		},
		{
			name:     "Error with underlying error",
			appError: ErrDatabaseError.WithError(stderrors.New("connection timeout")),
			want:     "[1004] 数据库错误: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_WithMessage(t *testing.T) {
	original := New(1001, "原始消息")
	modified := original.WithMessage("修改后的消息")

	assert.Equal(t, 1001, modified.Code)
	assert.Equal(t, "修改后的消息", modified.Message)
	assert.Equal(t, "原始消息", original.Message)
}

func TestAppError_Is(t *testing.T) {
	t.Run("错误码唯一", func(t *testing.T) {
		seen := map[int]string{}
		for _, e := range []*AppError{
			ErrUnknown, ErrDatabaseError, ErrCacheError, ErrInternalError, ErrExternalService, ErrRateLimitExceed, ErrQueueError,
			ErrWalletNotFound, ErrBalanceInsufficient, ErrFrozenInsufficient, ErrConcurrencyConflict, ErrInvalidAmount, ErrMemberNotFound,
			ErrOrderNotFound, ErrReferralSelfBind, ErrReferralCycle,
			ErrWithdrawalNotFound, ErrWithdrawalStatus, ErrWithdrawBelowMin, ErrWithdrawMethod, ErrWithdrawProcessing, ErrPaymentFailed, ErrInvalidAuditAction,
		} {
			prev, dup := seen[e.Code]
			assert.False(t, dup, "%d 同时用于 %s 和 %s", e.Code, prev, e.Message)
			seen[e.Code] = e.Message
		}
	})

	t.Run("派生错误匹配原始哨兵", func(t *testing.T) {
		derived := ErrBalanceInsufficient.WithMessage("可提现余额不足")
		assert.True(t, stderrors.Is(derived, ErrBalanceInsufficient))
		assert.False(t, stderrors.Is(derived, ErrFrozenInsufficient))
	})

	t.Run("被 fmt 包装后仍可匹配", func(t *testing.T) {
		wrapped := fmt.Errorf("settle commission 7: %w", ErrConcurrencyConflict)
		assert.True(t, stderrors.Is(wrapped, ErrConcurrencyConflict))
		assert.True(t, IsRetryable(wrapped))
	})

	t.Run("非冲突错误不可重试", func(t *testing.T) {
		assert.False(t, IsRetryable(ErrDatabaseError))
		assert.False(t, IsRetryable(stderrors.New("boom")))
	})
}

func TestGetAppError(t *testing.T) {
	t.Run("应用错误原样返回", func(t *testing.T) {
		got := GetAppError(ErrWithdrawalStatus)
		assert.Equal(t, ErrWithdrawalStatus.Code, got.Code)
	})

	t.Run("包装的应用错误可被解出", func(t *testing.T) {
		got := GetAppError(fmt.Errorf("audit: %w", ErrWithdrawBelowMin))
		assert.Equal(t, ErrWithdrawBelowMin.Code, got.Code)
		assert.True(t, IsAppError(fmt.Errorf("audit: %w", ErrWithdrawBelowMin)))
	})

	t.Run("普通错误转为未知错误", func(t *testing.T) {
		plain := stderrors.New("plain")
		got := GetAppError(plain)
		assert.Equal(t, ErrUnknown.Code, got.Code)
		assert.Equal(t, plain, got.Err)
		assert.False(t, IsAppError(plain))
	})
}

func TestErrorCodeRanges(t *testing.T) {
	groups := map[string]struct {
		errs     []*AppError
		min, max int
	}{
		"通用": {[]*AppError{ErrUnknown, ErrDatabaseError, ErrCacheError, ErrQueueError}, 1000, 1999},
		"钱包": {[]*AppError{ErrWalletNotFound, ErrBalanceInsufficient, ErrFrozenInsufficient, ErrConcurrencyConflict}, 3000, 3999},
		"佣金": {[]*AppError{ErrOrderNotFound, ErrReferralSelfBind, ErrReferralCycle}, 4000, 4999},
		"提现": {[]*AppError{ErrWithdrawalNotFound, ErrWithdrawalStatus, ErrWithdrawBelowMin, ErrPaymentFailed}, 5000, 5999},
	}

	for name, g := range groups {
		t.Run(name, func(t *testing.T) {
			for _, e := range g.errs {
				assert.GreaterOrEqual(t, e.Code, g.min, e.Message)
				assert.LessOrEqual(t, e.Code, g.max, e.Message)
			}
		})
	}
}
