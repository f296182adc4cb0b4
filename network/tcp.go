package network

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

const (
	defaultWriteTimeout      = 30 * time.Second
	defaultHeartbeatInterval = 15 * time.Second
)

// TCPConfig tunes a TCP channel. Zero values fall back to defaults.
type TCPConfig struct {
	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration

	// HeartbeatInterval is the idle interval between ping frames
	HeartbeatInterval time.Duration
}

func (c TCPConfig) withDefaults() TCPConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	return c
}

// tcpChannel implements Channel over a net.Conn with length-prefixed
// framing and idle heartbeats.
type tcpChannel struct {
	id     string
	conn   net.Conn
	config TCPConfig

	sendChan chan []byte
	recvChan chan []byte
	done     chan struct{}

	closed    int32
	closeOnce sync.Once

	// Statistics
	bytesRead    int64
	bytesWritten int64
	framesRead   int64
	framesSent   int64
}

// tcpChannelIDCounter generates unique channel IDs.
var tcpChannelIDCounter int64

// NewTCPChannel wraps an accepted or dialed connection in a Channel.
func NewTCPChannel(conn net.Conn, config TCPConfig) Channel {
	t := &tcpChannel{
		id:       fmt.Sprintf("tcp-%d", atomic.AddInt64(&tcpChannelIDCounter, 1)),
		conn:     conn,
		config:   config.withDefaults(),
		sendChan: make(chan []byte, 256),
		recvChan: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	go t.sendLoop()
	go t.readLoop()

	glog.V(2).Infof("channel %s open, remote=%s", t.id, conn.RemoteAddr())
	return t
}

// Dial connects to a TCP listener and returns the channel.
func Dial(addr string, config TCPConfig) (Channel, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewTCPChannel(conn, config), nil
}

// ID returns the channel id used in logs.
func (t *tcpChannel) ID() string {
	return t.id
}

// Send queues a frame for delivery.
func (t *tcpChannel) Send(frame []byte) error {
	if atomic.LoadInt32(&t.closed) != 0 {
		return ErrChannelClosed
	}
	select {
	case t.sendChan <- frame:
		return nil
	case <-t.done:
		return ErrChannelClosed
	}
}

// Receive blocks until the next payload frame arrives.
func (t *tcpChannel) Receive() ([]byte, error) {
	select {
	case frame := <-t.recvChan:
		return frame, nil
	case <-t.done:
		select {
		case frame := <-t.recvChan:
			return frame, nil
		default:
			return nil, ErrChannelClosed
		}
	}
}

// Close tears down the channel and the underlying connection.
func (t *tcpChannel) Close() error {
	t.closeOnce.Do(func() {
		atomic.StoreInt32(&t.closed, 1)
		close(t.done)
		t.conn.Close()
		glog.V(2).Infof("channel %s closed, frames r/s=%d/%d bytes r/w=%d/%d",
			t.id, atomic.LoadInt64(&t.framesRead), atomic.LoadInt64(&t.framesSent),
			atomic.LoadInt64(&t.bytesRead), atomic.LoadInt64(&t.bytesWritten))
	})
	return nil
}

// Done is closed when the channel is torn down.
func (t *tcpChannel) Done() <-chan struct{} {
	return t.done
}

// sendLoop writes queued frames and idle heartbeats.
func (t *tcpChannel) sendLoop() {
	ticker := time.NewTicker(t.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-t.sendChan:
			if err := t.write(frameKindData, frame); err != nil {
				glog.Warningf("channel %s write failed: %v", t.id, err)
				t.Close()
				return
			}
			atomic.AddInt64(&t.framesSent, 1)
		case <-ticker.C:
			if err := t.write(frameKindPing, nil); err != nil {
				t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

// readLoop reads frames off the wire, dropping pings.
func (t *tcpChannel) readLoop() {
	for {
		kind, payload, err := readFrame(t.conn)
		if err != nil {
			if err != io.EOF && atomic.LoadInt32(&t.closed) == 0 {
				glog.Warningf("channel %s read failed: %v", t.id, err)
			}
			t.Close()
			return
		}
		atomic.AddInt64(&t.bytesRead, int64(frameHeaderSize+len(payload)))
		if kind == frameKindPing {
			continue
		}
		atomic.AddInt64(&t.framesRead, 1)
		select {
		case t.recvChan <- payload:
		case <-t.done:
			return
		}
	}
}

// write frames and writes a payload under the write deadline.
func (t *tcpChannel) write(kind frameKind, payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := writeFrame(t.conn, kind, payload); err != nil {
		return err
	}
	atomic.AddInt64(&t.bytesWritten, int64(frameHeaderSize+len(payload)))
	return nil
}
