package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	name  string
	order *[]string
}

func (c *countingTicker) OnTick() { *c.order = append(*c.order, c.name) }

func startLoop(t *testing.T, interval time.Duration) (*Loop, context.CancelFunc) {
	t.Helper()
	loop := NewLoop(interval)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, cancel
}

func TestLoopRunsPostedWorkInOrder(t *testing.T) {
	loop, _ := startLoop(t, time.Hour)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}

	var snapshot []int
	require.NoError(t, loop.Do(context.Background(), func() {
		snapshot = append(snapshot, got...)
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestLoopTickOrderAndRemoval(t *testing.T) {
	loop, _ := startLoop(t, time.Hour)

	var order []string
	a := &countingTicker{name: "a", order: &order}
	b := &countingTicker{name: "b", order: &order}
	c := &countingTicker{name: "c", order: &order}

	var got []string
	require.NoError(t, loop.Do(context.Background(), func() {
		loop.AddTicker(a)
		loop.AddTicker(b)
		loop.AddTicker(c)
		loop.Tick()
		loop.RemoveTicker(b)
		loop.Tick()
		got = append(got, order...)
	}))
	assert.Equal(t, []string{"a", "b", "c", "a", "c"}, got)
}

func TestLoopTicksPeriodically(t *testing.T) {
	loop, _ := startLoop(t, 5*time.Millisecond)

	ticks := make(chan struct{}, 16)
	require.NoError(t, loop.Do(context.Background(), func() {
		loop.AddTicker(tickFunc(func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}))
	}))

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not tick")
		}
	}
}

func TestLoopStopped(t *testing.T) {
	loop, cancel := startLoop(t, time.Hour)
	cancel()
	<-loop.Done()

	assert.False(t, loop.Post(func() {}))
	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoopDoAbandonedBeforeRunning(t *testing.T) {
	loop := NewLoop(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	assert.ErrorIs(t, loop.Do(ctx, func() { ran = true }), context.Canceled)

	runCtx, stop := context.WithCancel(context.Background())
	go loop.Run(runCtx)
	require.NoError(t, loop.Do(context.Background(), func() {}))
	stop()
	<-loop.Done()

	assert.False(t, ran)
}

func TestLoopDoWaitsForStartedWork(t *testing.T) {
	loop, _ := startLoop(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	finished := false

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Do(ctx, func() {
			close(started)
			<-release
			finished = true
		})
	}()

	<-started
	cancel()
	close(release)
	require.NoError(t, <-errCh)
	assert.True(t, finished)
}

func TestNewLoopDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultTickInterval, NewLoop(0).interval)
}

type tickFunc func()

func (f tickFunc) OnTick() { f() }
