package network

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsChannel implements Channel over a WebSocket connection. WebSocket
// messages already carry their own framing, so frames map onto binary
// messages one to one.
type wsChannel struct {
	conn *websocket.Conn

	sendChan chan []byte
	recvChan chan []byte
	done     chan struct{}

	closed    int32
	closeOnce sync.Once
}

// NewWebSocketChannel wraps an upgraded or dialed WebSocket connection.
func NewWebSocketChannel(conn *websocket.Conn) Channel {
	w := &wsChannel{
		conn:     conn,
		sendChan: make(chan []byte, 256),
		recvChan: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	go w.sendLoop()
	go w.readLoop()
	return w
}

// DialWebSocket connects to a WebSocket endpoint such as
// ws://host:port/session.
func DialWebSocket(url string) (Channel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocketChannel(conn), nil
}

// WebSocketHandler returns an http.Handler that upgrades requests and
// hands the resulting channel to the handler.
func WebSocketHandler(handler ChannelHandler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(rw, r, nil)
		if err != nil {
			glog.Warningf("websocket upgrade failed: %v", err)
			return
		}
		glog.V(2).Infof("websocket connection from %s", conn.RemoteAddr())
		handler(NewWebSocketChannel(conn))
	})
}

func (w *wsChannel) Send(frame []byte) error {
	if atomic.LoadInt32(&w.closed) != 0 {
		return ErrChannelClosed
	}
	select {
	case w.sendChan <- frame:
		return nil
	case <-w.done:
		return ErrChannelClosed
	}
}

func (w *wsChannel) Receive() ([]byte, error) {
	select {
	case frame := <-w.recvChan:
		return frame, nil
	case <-w.done:
		select {
		case frame := <-w.recvChan:
			return frame, nil
		default:
			return nil, ErrChannelClosed
		}
	}
}

func (w *wsChannel) Close() error {
	w.closeOnce.Do(func() {
		atomic.StoreInt32(&w.closed, 1)
		close(w.done)
		w.conn.Close()
	})
	return nil
}

func (w *wsChannel) Done() <-chan struct{} {
	return w.done
}

// sendLoop is the single writer required by the WebSocket protocol.
func (w *wsChannel) sendLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-w.sendChan:
			w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				glog.Warningf("websocket write failed: %v", err)
				w.Close()
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.Close()
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *wsChannel) readLoop() {
	for {
		_, frame, err := w.conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&w.closed) == 0 && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Warningf("websocket read failed: %v", err)
			}
			w.Close()
			return
		}
		select {
		case w.recvChan <- frame:
		case <-w.done:
			return
		}
	}
}
