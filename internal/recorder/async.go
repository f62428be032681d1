package recorder

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/energizer-project/gpgnet-mock/internal/util"
)

// DefaultQueueSize is the number of entries an Async sink buffers.
const DefaultQueueSize = 4096

// ErrQueueFull is returned when an entry is dropped because the writer is
// behind.
var ErrQueueFull = errors.New("recording queue full")

var recLog = util.ComponentLogger("recorder")

// Async hands entries to a writer goroutine so Record never waits on disk.
// Entries that arrive while the queue is full are dropped and counted.
type Async struct {
	sink    Recorder
	queue   chan Entry
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsync starts a writer goroutine for sink. A non-positive size selects
// DefaultQueueSize.
func NewAsync(sink Recorder, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		sink:  sink,
		queue: make(chan Entry, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for e := range a.queue {
		if err := a.sink.Record(e); err != nil {
			if a.failed.Add(1) == 1 {
				recLog.Warn().Err(err).Msg("failed to record header")
			}
		}
	}
}

// Record queues e without blocking.
func (a *Async) Record(e Entry) error {
	e.Payload = append([]byte(nil), e.Payload...)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("recorder closed")
	}

	select {
	case a.queue <- e:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns the number of entries lost to a full queue.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close drains the queue into the sink and closes it.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
	if n := a.dropped.Load(); n > 0 {
		recLog.Warn().Uint64("dropped", n).Msg("recording dropped headers")
	}
	if n := a.failed.Load(); n > 0 {
		recLog.Warn().Uint64("failed", n).Msg("recording failed to write headers")
	}
	return a.sink.Close()
}
