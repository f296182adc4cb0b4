package network

import (
	"sync"
	"sync/atomic"
)

// ChannelState defines the lifecycle state of a channel.
type ChannelState int32

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

// String returns the string representation of ChannelState.
func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpen:
		return "open"
	case ChannelStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is an ordered, bidirectional frame stream between two peers.
// Frames sent on one side arrive on the other side in the order sent.
type Channel interface {
	// Send queues a frame for delivery. Delivery is asynchronous; a nil
	// error means the frame was accepted, not that it arrived.
	Send(frame []byte) error

	// Receive blocks until the next frame arrives or the channel closes.
	Receive() ([]byte, error)

	// Close tears down the channel. Closing an already closed channel
	// is a no-op.
	Close() error

	// Done is closed when the channel is torn down.
	Done() <-chan struct{}
}

// pipeChannel is one end of an in-process channel pair.
type pipeChannel struct {
	out    chan []byte
	in     chan []byte
	done   chan struct{}
	peer   *pipeChannel
	closed int32

	// closeOnce is shared by both ends so concurrent closes from
	// either side funnel through one close path
	closeOnce *sync.Once
}

// Pipe creates a connected pair of in-process channels. Frames written
// to one end are read from the other. Both ends close when either end
// closes.
func Pipe() (Channel, Channel) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	once := new(sync.Once)
	a := &pipeChannel{out: ab, in: ba, done: make(chan struct{}), closeOnce: once}
	b := &pipeChannel{out: ba, in: ab, done: make(chan struct{}), closeOnce: once}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *pipeChannel) Send(frame []byte) error {
	if atomic.LoadInt32(&p.closed) != 0 {
		return ErrChannelClosed
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.done:
		return ErrChannelClosed
	}
}

func (p *pipeChannel) Receive() ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		// Drain frames that arrived before the close
		select {
		case frame := <-p.in:
			return frame, nil
		default:
			return nil, ErrChannelClosed
		}
	}
}

func (p *pipeChannel) Close() error {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.closed, 1)
		atomic.StoreInt32(&p.peer.closed, 1)
		close(p.done)
		close(p.peer.done)
	})
	return nil
}

func (p *pipeChannel) Done() <-chan struct{} {
	return p.done
}
