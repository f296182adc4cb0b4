package network

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// ChannelHandler is called once for every accepted channel. The handler
// owns the channel from that point on.
type ChannelHandler func(ch Channel)

// Server accepts TCP connections and hands each one to the handler as a
// framed channel.
type Server struct {
	addr    string
	config  TCPConfig
	handler ChannelHandler

	listener net.Listener
	running  int32
	stopped  int32
	wg       sync.WaitGroup
}

// NewServer creates a server. The handler must not be nil.
func NewServer(addr string, config TCPConfig, handler ChannelHandler) *Server {
	return &Server{
		addr:    addr,
		config:  config.withDefaults(),
		handler: handler,
	}
}

// Start begins listening and accepting in the background.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = listener

	glog.Infof("listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for the accept loop to finish.
// Channels already handed to the handler are not touched.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// acceptLoop accepts connections until the listener closes.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.stopped) == 0 {
				glog.Errorf("accept failed: %v", err)
			}
			return
		}
		glog.V(2).Infof("accepted connection from %s", conn.RemoteAddr())
		s.handler(NewTCPChannel(conn, s.config))
	}
}
