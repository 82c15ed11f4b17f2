package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

// LocalLocker is an in-process Locker for single-instance deployments that
// run without Redis.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
}

type localLock struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock)}
}

func (l *LocalLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.locks[key] = localLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
	return nil
}

func inventoryLockKey(productID, storeID int64) string {
	return fmt.Sprintf("inventory:%d:%d", productID, storeID)
}

func productNameLockKey(storeID int64, name string) string {
	return fmt.Sprintf("product-name:%d:%s", storeID, normalizeKey(name))
}

// acquireLocks takes every key in sorted order so two operations touching the
// same records never wait on each other in opposite order. The returned func
// releases whatever was acquired.
func acquireLocks(ctx context.Context, locker Locker, ttl time.Duration, logger *zap.Logger, keys ...string) (func(), error) {
	start := time.Now()
	defer func() {
		util.LockWaitLatency.Observe(time.Since(start).Seconds())
	}()

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	type held struct{ key, token string }
	var acquired []held
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := locker.ReleaseLock(context.Background(), acquired[i].key, acquired[i].token); err != nil {
				logger.Warn("Failed to release lock", zap.String("key", acquired[i].key), zap.Error(err))
			}
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		token, err := acquireWithRetry(ctx, locker, key, ttl)
		if err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	return release, nil
}

func acquireWithRetry(ctx context.Context, locker Locker, key string, ttl time.Duration) (string, error) {
	for attempt := 0; attempt < lockRetries; attempt++ {
		token, ok, err := locker.AcquireLock(ctx, key, ttl)
		if err != nil {
			return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if attempt == lockRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return "", ErrLockUnavailable
}
