package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// LoopState represents the current state of a Loop.
type LoopState int32

const (
	// LoopStateIdle means the loop has not been started yet
	LoopStateIdle LoopState = iota

	// LoopStateRunning means the loop is processing work
	LoopStateRunning

	// LoopStateStopping means the loop is shutting down
	LoopStateStopping

	// LoopStateStopped means the loop has been stopped
	LoopStateStopped
)

// String returns the string representation of LoopState.
func (s LoopState) String() string {
	switch s {
	case LoopStateIdle:
		return "idle"
	case LoopStateRunning:
		return "running"
	case LoopStateStopping:
		return "stopping"
	case LoopStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultMailboxSize is the mailbox capacity used when none is given.
const DefaultMailboxSize = 1024

// Loop serializes all component state access within one runtime. Work
// posted to the loop runs on a single goroutine in FIFO order, which
// gives the cooperative single-threaded execution model the component
// layer relies on.
type Loop struct {
	mailbox chan func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	state     int32 // LoopState
	processed uint64
}

// NewLoop creates a loop with the given mailbox capacity.
func NewLoop(mailboxSize int) *Loop {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		mailbox: make(chan func(), mailboxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	atomic.StoreInt32(&l.state, int32(LoopStateIdle))
	return l
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return LoopState(atomic.LoadInt32(&l.state))
}

// Start begins the processing goroutine.
func (l *Loop) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.state, int32(LoopStateIdle), int32(LoopStateRunning)) {
		return fmt.Errorf("loop is already started (state: %s)", l.State())
	}
	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop shuts the loop down after draining queued work.
func (l *Loop) Stop() error {
	if !atomic.CompareAndSwapInt32(&l.state, int32(LoopStateRunning), int32(LoopStateStopping)) {
		return fmt.Errorf("loop cannot be stopped from state %s", l.State())
	}
	l.cancel()
	l.wg.Wait()
	atomic.StoreInt32(&l.state, int32(LoopStateStopped))
	return nil
}

// Post queues fn for execution on the loop goroutine. Non-blocking.
func (l *Loop) Post(fn func()) error {
	if l.State() != LoopStateRunning {
		return ErrLoopNotRunning
	}
	select {
	case l.mailbox <- fn:
		return nil
	case <-l.ctx.Done():
		return ErrLoopNotRunning
	default:
		return ErrLoopFull
	}
}

// Call queues fn and waits for it to finish.
func (l *Loop) Call(fn func()) error {
	done := make(chan struct{})
	err := l.Post(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.ctx.Done():
		return ErrLoopNotRunning
	}
}

// Processed returns the number of work items executed.
func (l *Loop) Processed() uint64 {
	return atomic.LoadUint64(&l.processed)
}

// run is the main processing loop.
func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case fn := <-l.mailbox:
			if fn == nil {
				continue
			}
			fn()
			atomic.AddUint64(&l.processed, 1)

		case <-ctx.Done():
			// The caller's context ended the loop without Stop, so the
			// state transition happens here; Post must start failing.
			l.cancel()
			l.drain()
			atomic.StoreInt32(&l.state, int32(LoopStateStopped))
			return

		case <-l.ctx.Done():
			l.drain()
			return
		}
	}
}

// drain executes remaining queued work during shutdown.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.mailbox:
			if fn == nil {
				return
			}
			fn()
			atomic.AddUint64(&l.processed, 1)
		default:
			return
		}
	}
}
