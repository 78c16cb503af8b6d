package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	locker := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "Basket Index")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocal()
	release, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	other, err := locker.Acquire(ctx, "b")
	require.NoError(t, err)
	other()
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	locker := NewLocal()
	release, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	again, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
}

func TestEmptyKey(t *testing.T) {
	_, err := NewLocal().Acquire(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestRedisTryLockWithoutClient(t *testing.T) {
	var l *Redis
	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}
