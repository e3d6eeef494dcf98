// Package testutil 测试用数据库与缓存环境：单元测试使用 sqlite 内存库与 miniredis，
// 集成测试（-tags integration）使用 testcontainers 启动的 Postgres 与 Redis
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/referral-settlement/internal/models"
)

// NewSQLite 每个测试独立的共享缓存内存库，单连接以串行化写入。
// 未指定 tables 时迁移全部模型
func NewSQLite(t testing.TB, tables ...interface{}) *gorm.DB {
	t.Helper()
	if len(tables) == 0 {
		tables = models.All()
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

// NewMiniRedis 启动 miniredis 并返回已连接的客户端
func NewMiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
