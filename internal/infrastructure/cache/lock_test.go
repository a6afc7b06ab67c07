package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_TryLock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "wallet-scan:a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "wallet-scan:a")
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not granted twice")

	otherRelease, ok, err := l.TryLock(ctx, "wallet-scan:b")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per key")
	otherRelease()

	release()
	release()

	again, ok, err := l.TryLock(ctx, "wallet-scan:a")
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestLocalLocker_OneWinnerUnderContention(t *testing.T) {
	l := NewLocalLocker()
	var (
		winners atomic.Int32
		wg      sync.WaitGroup
		start   = make(chan struct{})
	)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := l.TryLock(context.Background(), "k"); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
