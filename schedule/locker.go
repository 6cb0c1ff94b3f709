package schedule

import (
	"errors"
	"sync"
	"time"

	"github.com/opdss/tablib/contracts/locker"
)

var (
	ErrLocked    = errors.New("job is locked")
	ErrNotLocked = errors.New("lock is not held")
)

// LockerFunc 按 key 创建锁
type LockerFunc func(key string) locker.Locker

type memoryLocks struct {
	mu   sync.Mutex
	held map[string]*memoryLocker
}

// MemoryLockers 进程内的锁，未启用 redis 时使用，只能保证单实例内互斥
func MemoryLockers() LockerFunc {
	locks := &memoryLocks{held: make(map[string]*memoryLocker)}
	return func(key string) locker.Locker {
		return &memoryLocker{locks: locks, key: key}
	}
}

type memoryLocker struct {
	locks    *memoryLocks
	key      string
	deadline time.Time
}

var _ locker.Locker = (*memoryLocker)(nil)

func (l *memoryLocker) Lock(exp time.Duration) error {
	l.locks.mu.Lock()
	defer l.locks.mu.Unlock()
	now := time.Now()
	if owner, ok := l.locks.held[l.key]; ok && now.Before(owner.deadline) {
		return ErrLocked
	}
	l.deadline = now.Add(exp)
	l.locks.held[l.key] = l
	return nil
}

func (l *memoryLocker) TryLock(wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		err := l.Lock(wait)
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *memoryLocker) Unlock() error {
	l.locks.mu.Lock()
	defer l.locks.mu.Unlock()
	if owner, ok := l.locks.held[l.key]; !ok || owner != l {
		return ErrNotLocked
	}
	delete(l.locks.held, l.key)
	l.deadline = time.Time{}
	return nil
}
