// Package scheduler 周期任务调度与结算、对账任务
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/logger"
)

// DefaultTaskTimeout 单次执行超时
const DefaultTaskTimeout = 5 * time.Minute

// Job 任务体，ctx 在超时或调度器停止时取消
type Job func(ctx context.Context) error

// Task 周期任务。同一任务串行执行，执行期间错过的 tick 直接丢弃
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Job      Job
}

// Scheduler 每个任务一个 goroutine，启动时立即执行一次
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AddTask 注册任务，须在 Start 之前调用
func (s *Scheduler) AddTask(name string, interval time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Timeout: DefaultTaskTimeout, Job: job})
}

func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

// Start 启动全部任务，重复调用无效
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	logger.Info("Scheduler starting", zap.Int("tasks", len(s.tasks)))
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

// Stop 取消任务并等待执行中的任务返回
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		run(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// run 执行一次，任务 panic 不影响后续调度
func run(ctx context.Context, t Task) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Job(ctx)
	}()
	if err != nil {
		logger.Error("Task failed", zap.String("task", t.Name), logger.Latency(time.Since(start)), zap.Error(err))
		return
	}
	logger.Debug("Task completed", zap.String("task", t.Name), logger.Latency(time.Since(start)))
}
