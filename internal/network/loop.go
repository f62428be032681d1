// Package network runs the harness's sockets: a single event loop that owns
// all session state, a TCP listener for GPGNet control connections, and UDP
// endpoints for the per-player relays. Socket reader goroutines never touch
// session state; they copy bytes and post closures to the loop.
package network

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/gpgnet-mock/internal/util"
)

// DefaultTickInterval is the period of the OnTick pass.
const DefaultTickInterval = 100 * time.Millisecond

const taskQueueSize = 1024

// ErrLoopStopped is returned when work is submitted to a loop that has exited.
var ErrLoopStopped = errors.New("event loop stopped")

// Ticker receives the periodic tick on the loop goroutine.
type Ticker interface {
	OnTick()
}

// Loop serializes every handler callback onto one goroutine.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	interval time.Duration
	tickers  []Ticker
	logger   zerolog.Logger
}

// NewLoop creates a loop that ticks every interval. A non-positive interval
// selects DefaultTickInterval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		tasks:    make(chan func(), taskQueueSize),
		done:     make(chan struct{}),
		interval: interval,
		logger:   util.ComponentLogger("loop"),
	}
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full and reports false if the loop has already exited.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// Do runs fn on the loop goroutine and waits for it to finish. When Do
// returns an error fn has not run and never will; once fn has started, Do
// waits for it regardless of ctx.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32
	finished := make(chan struct{})
	if !l.Post(func() {
		if !state.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			return ErrLoopStopped
		}
		<-finished
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			return ctx.Err()
		}
		<-finished
		return nil
	}
}

// AddTicker registers t for the tick pass. Loop goroutine only.
func (l *Loop) AddTicker(t Ticker) {
	l.tickers = append(l.tickers, t)
}

// RemoveTicker unregisters t. Loop goroutine only.
func (l *Loop) RemoveTicker(t Ticker) {
	for i, existing := range l.tickers {
		if existing == t {
			l.tickers = append(l.tickers[:i], l.tickers[i+1:]...)
			return
		}
	}
}

// Tick runs one OnTick pass over registered tickers in registration order.
// Loop goroutine only.
func (l *Loop) Tick() {
	snapshot := make([]Ticker, len(l.tickers))
	copy(snapshot, l.tickers)
	for _, t := range snapshot {
		t.OnTick()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run processes posted closures and ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug().Dur("tick", l.interval).Msg("event loop running")

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("event loop stopping")
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-ticker.C:
			l.Tick()
		}
	}
}
