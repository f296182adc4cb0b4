package network

import (
	"testing"
	"time"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	if err := a.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	frame, err := b.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(frame) != "hello" {
		t.Errorf("Expected 'hello', got %q", frame)
	}
}

func TestPipeOrdering(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	for i := byte(0); i < 10; i++ {
		if err := a.Send([]byte{i}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	for i := byte(0); i < 10; i++ {
		frame, err := b.Receive()
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		if frame[0] != i {
			t.Errorf("Expected frame %d, got %d", i, frame[0])
		}
	}
}

func TestPipeClose(t *testing.T) {
	t.Run("ClosesBothEnds", func(t *testing.T) {
		a, b := Pipe()
		a.Close()

		select {
		case <-b.Done():
		case <-time.After(time.Second):
			t.Fatal("Peer channel did not close")
		}
		if err := b.Send([]byte("x")); err != ErrChannelClosed {
			t.Errorf("Expected ErrChannelClosed, got %v", err)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		a, b := Pipe()
		a.Close()
		a.Close()
		b.Close()
	})

	t.Run("ConcurrentFromBothEnds", func(t *testing.T) {
		// Both runtimes of an in-process pair tear down their session
		// at once, so both ends close concurrently.
		for i := 0; i < 500; i++ {
			a, b := Pipe()
			done := make(chan struct{}, 2)
			go func() {
				a.Close()
				done <- struct{}{}
			}()
			go func() {
				b.Close()
				done <- struct{}{}
			}()
			for j := 0; j < 2; j++ {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("Concurrent close did not finish")
				}
			}
		}
	})

	t.Run("DrainsPendingFrames", func(t *testing.T) {
		a, b := Pipe()
		a.Send([]byte("last"))
		a.Close()

		frame, err := b.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(frame) != "last" {
			t.Errorf("Expected 'last', got %q", frame)
		}
		if _, err := b.Receive(); err != ErrChannelClosed {
			t.Errorf("Expected ErrChannelClosed, got %v", err)
		}
	})
}
