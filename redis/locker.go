package redis

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opdss/tablib/contracts/locker"
	"github.com/redis/go-redis/v9"
)

var ErrTimeout = errors.New("try lock time out")
var ErrFailure = errors.New("get lock failure")

// ErrNotLocked 解锁时锁已过期或被其他实例持有
var ErrNotLocked = errors.New("lock is not held")

const delLua = `if redis.call("get",KEYS[1]) == ARGV[1] then return redis.call("del",KEYS[1]) end return 0`

var unlockScript = redis.NewScript(delLua)

var _ locker.Locker = (*Locker)(nil)

// Locker 基于redis实现的分布式锁，多个实例的定时导出通过它互斥
type Locker struct {
	client   redis.Cmdable
	key      string
	token    string
	deadline time.Time
}

// NewLocker 每个 Locker 有独立的 token，只能释放自己加的锁
func NewLocker(key string, rdb redis.Cmdable) *Locker {
	return &Locker{
		client: rdb,
		key:    key,
		token:  uuid.New().String(),
	}
}

// Key 锁的 key
func (l *Locker) Key() string {
	return l.key
}

// Lock 非阻塞锁
func (l *Locker) Lock(exp time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), exp)
	defer cancel()
	ok, err := l.client.SetNX(ctx, l.key, l.token, exp).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrFailure
	}
	l.deadline = time.Now().Add(exp)
	return nil
}

// TryLock 自旋锁，等待时间与锁时间相同
func (l *Locker) TryLock(wait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	var lastErr error
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, wait).Result()
		switch {
		case err == nil && ok:
			l.deadline = time.Now().Add(wait)
			return nil
		case err != nil:
			lastErr = err
		}
		delay := 10 * time.Millisecond
		if err != nil {
			delay = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
				return lastErr
			}
			return ErrTimeout
		case <-time.After(delay):
		}
	}
}

// Unlock 只删除自己持有的锁
func (l *Locker) Unlock() error {
	if l.deadline.IsZero() {
		return ErrNotLocked
	}
	defer func() {
		l.deadline = time.Time{}
	}()
	if time.Now().After(l.deadline) {
		return ErrNotLocked
	}
	ctx, cancel := context.WithDeadline(context.Background(), l.deadline)
	defer cancel()
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		log.Printf("redis unlock error[%s]:%s\n", l.key, err)
		return err
	}
	if n == 0 {
		return ErrNotLocked
	}
	return nil
}
