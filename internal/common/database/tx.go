package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	appErrors "github.com/dumeirei/referral-settlement/internal/common/errors"
)

// DefaultTxAttempts 可重试错误下整笔事务的最大尝试次数
const DefaultTxAttempts = 3

// PostgreSQL SQLSTATE
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// RunInTx 在事务中执行 fn。钱包版本冲突、序列化失败或死锁时回滚并整体重跑，
// 其余错误直接返回。opts 为 nil 时使用数据库默认隔离级别
func RunInTx(ctx context.Context, db *gorm.DB, attempts int, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	var txOpts []*sql.TxOptions
	if opts != nil {
		txOpts = append(txOpts, opts)
	}

	var err error
	for i := 0; i < max(attempts, 1); i++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = db.WithContext(ctx).Transaction(fn, txOpts...)
		if !retryable(err) {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	return err != nil && (appErrors.IsRetryable(err) || IsSerializationFailure(err))
}

// IsSerializationFailure 是否为 PostgreSQL 序列化失败或死锁
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

// RepeatableRead 可重复读
func RepeatableRead() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
}
