package cache

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld 释放时锁已过期或已被其他实例持有
var ErrLockNotHeld = stderrors.New("lock not held")

// 仅当值与持有者令牌一致时删除，避免误删过期后被他人抢到的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 基于 SET NX PX 的集群互斥锁，过期与持有者存活无关
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock 创建锁，key 会自动加上 lock: 前缀
func NewLock(client *redis.Client, name string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    BuildKey(KeyPrefixLock, name),
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Key 返回锁的完整键名
func (l *Lock) Key() string {
	return l.key
}

// TryAcquire 尝试获取锁，不阻塞
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Release 释放锁
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
