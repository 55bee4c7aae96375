package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescer_SingleRun(t *testing.T) {
	var c Coalescer
	calls := 0

	ran, err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
	assert.False(t, c.Busy())
}

func TestCoalescer_FoldsBurstIntoOneFollowUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c Coalescer
		var calls atomic.Int32
		fn := func(context.Context) error {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return nil
		}

		done := make(chan bool, 1)
		go func() {
			ran, _ := c.Do(context.Background(), fn)
			done <- ran
		}()
		synctest.Wait()
		assert.True(t, c.Busy())

		folded := make(chan bool, 5)
		for i := 0; i < 5; i++ {
			go func() {
				ran, err := c.Do(context.Background(), fn)
				assert.NoError(t, err)
				folded <- ran
			}()
		}

		assert.True(t, <-done)
		for i := 0; i < 5; i++ {
			assert.False(t, <-folded)
		}
		assert.Equal(t, int32(2), calls.Load())
		assert.False(t, c.Busy())
	})
}

func TestCoalescer_FoldedCallerWaitsForFollowUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c Coalescer
		var finished atomic.Int32
		fn := func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return nil
		}

		go func() { _, _ = c.Do(context.Background(), fn) }()
		synctest.Wait()

		ran, err := c.Do(context.Background(), fn)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Equal(t, int32(2), finished.Load(), "returns only after the follow-up run finished")
	})
}

func TestCoalescer_FoldedCallerGetsFollowUpError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c Coalescer
		var calls atomic.Int32
		fn := func(context.Context) error {
			n := calls.Add(1)
			time.Sleep(10 * time.Millisecond)
			if n == 2 {
				return errors.New("follow-up failed")
			}
			return nil
		}

		go func() { _, _ = c.Do(context.Background(), fn) }()
		synctest.Wait()

		_, err := c.Do(context.Background(), fn)
		assert.EqualError(t, err, "follow-up failed")
	})
}

func TestCoalescer_ReturnsLastRunError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c Coalescer
		var calls atomic.Int32
		fn := func(context.Context) error {
			n := calls.Add(1)
			time.Sleep(10 * time.Millisecond)
			if n == 1 {
				return errors.New("first run failed")
			}
			return nil
		}

		errCh := make(chan error, 1)
		go func() {
			_, err := c.Do(context.Background(), fn)
			errCh <- err
		}()
		synctest.Wait()
		_, _ = c.Do(context.Background(), fn)

		assert.NoError(t, <-errCh, "the follow-up run succeeded")
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestCoalescer_CancelledContextDropsFollowUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var c Coalescer
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			_, _ = c.Do(ctx, func(context.Context) error {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
		synctest.Wait()
		folded := make(chan error, 1)
		go func() {
			_, err := c.Do(ctx, func(context.Context) error { return nil })
			folded <- err
		}()
		synctest.Wait()
		cancel()

		assert.ErrorIs(t, <-folded, context.Canceled)
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, c.Busy())
	})
}
