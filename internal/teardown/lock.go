package teardown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker 租户级teardown互斥锁
// 同一租户的两次并发teardown会产生重复外部删除调用和互相竞争的purge步骤，
// 整个saga必须在锁内执行
type Locker interface {
	// Acquire 尝试获取租户锁
	// 成功返回release函数；锁被占返回 (nil, false, nil)
	Acquire(ctx context.Context, tenantID string) (release func(), acquired bool, err error)
}

// RedisLocker 基于Redis SET NX的租户锁（多实例部署下仍然互斥）
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker 创建Redis租户锁
// ttl 是锁的保底过期时间：持锁进程崩溃后锁自动释放
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) Acquire(ctx context.Context, tenantID string) (func(), bool, error) {
	key := "teardown:lock:" + tenantID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire teardown lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 只释放自己持有的锁（token比对），过期后被他人重占的锁不能误删
		const script = `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			end
			return 0
		`
		_ = l.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, true, nil
}

// MemoryLocker 进程内租户锁（DB-less联测/单实例开发）
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]bool{}}
}

var _ Locker = (*MemoryLocker)(nil)

func (l *MemoryLocker) Acquire(_ context.Context, tenantID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tenantID] {
		return nil, false, nil
	}
	l.held[tenantID] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, tenantID)
	}
	return release, true, nil
}
