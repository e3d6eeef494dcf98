//go:build integration

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/referral-settlement/internal/testutil"
)

// 多个实例同时触发同一任务，只有一个拿到锁执行
func TestTaskHandler_WithLock_Redis(t *testing.T) {
	client := testutil.StartRedis(t)
	ctx := context.Background()

	const instances = 5
	var (
		wg      sync.WaitGroup
		running atomic.Int32
		ran     atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < instances; i++ {
		h := NewTaskHandler(client, nil, nil, testSettlementConfig())
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := h.withLock(ctx, LockCommissionSettle, func(ctx context.Context) error {
				ran.Add(1)
				assert.Equal(t, int32(1), running.Add(1))
				time.Sleep(200 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ran.Load())

	// 释放后下一轮可以再次获取
	h := NewTaskHandler(client, nil, nil, testSettlementConfig())
	called := false
	require.NoError(t, h.withLock(ctx, LockCommissionSettle, func(ctx context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
