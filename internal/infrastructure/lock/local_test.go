package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		g       errgroup.Group
	)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(ctx, "user-1")
			if err != nil {
				return err
			}
			defer unlock()

			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.False(t, overlap.Load())
	assert.Zero(t, l.Len())
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLocal_ContextCanceledWhileWaiting(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "user-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Len())

	unlock()
	assert.Zero(t, l.Len())
}

func TestLocal_UnlockIsIdempotent(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()

	assert.Zero(t, l.Len())

	unlock2, err := l.Lock(context.Background(), "user-1")
	require.NoError(t, err)
	unlock2()
}
