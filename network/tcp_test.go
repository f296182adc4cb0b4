package network

import (
	"fmt"
	"testing"
	"time"
)

// startEchoServer starts a server on a free port whose handler echoes
// every frame back, and returns its address.
func startEchoServer(t *testing.T) (*Server, string) {
	t.Helper()

	server := NewServer("127.0.0.1:0", TCPConfig{}, func(ch Channel) {
		go func() {
			for {
				frame, err := ch.Receive()
				if err != nil {
					return
				}
				ch.Send(frame)
			}
		}()
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Server start failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server, server.Addr().String()
}

func TestTCPChannelRoundTrip(t *testing.T) {
	_, addr := startEchoServer(t)

	ch, err := Dial(addr, TCPConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ch.Close()

	if err := ch.Send([]byte("ping-pong")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	frame, err := ch.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(frame) != "ping-pong" {
		t.Errorf("Expected 'ping-pong', got %q", frame)
	}
}

func TestTCPChannelOrdering(t *testing.T) {
	_, addr := startEchoServer(t)

	ch, err := Dial(addr, TCPConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ch.Close()

	const count = 100
	for i := 0; i < count; i++ {
		if err := ch.Send([]byte(fmt.Sprintf("frame-%d", i))); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	for i := 0; i < count; i++ {
		frame, err := ch.Receive()
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		if string(frame) != fmt.Sprintf("frame-%d", i) {
			t.Errorf("Frame %d out of order: %q", i, frame)
		}
	}
}

func TestTCPChannelHeartbeat(t *testing.T) {
	_, addr := startEchoServer(t)

	// Aggressive heartbeat so pings flow during the test window
	ch, err := Dial(addr, TCPConfig{HeartbeatInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ch.Close()

	// Pings must not surface as payload frames
	time.Sleep(50 * time.Millisecond)
	ch.Send([]byte("data"))
	frame, err := ch.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(frame) != "data" {
		t.Errorf("Expected 'data', got %q", frame)
	}
}

func TestTCPChannelClose(t *testing.T) {
	_, addr := startEchoServer(t)

	ch, err := Dial(addr, TCPConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	ch.Close()
	ch.Close()

	if err := ch.Send([]byte("x")); err != ErrChannelClosed {
		t.Errorf("Expected ErrChannelClosed, got %v", err)
	}
	select {
	case <-ch.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Run("DoubleStart", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", TCPConfig{}, func(ch Channel) { ch.Close() })
		if err := server.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer server.Stop()

		if err := server.Start(); err != ErrServerRunning {
			t.Errorf("Expected ErrServerRunning, got %v", err)
		}
	})

	t.Run("StopUnblocksAccept", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", TCPConfig{}, func(ch Channel) { ch.Close() })
		if err := server.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		done := make(chan struct{})
		go func() {
			server.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return")
		}
	})
}
