package app

import (
	"context"
	"testing"
	"time"

	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/config"
	"github.com/tengqur/flexx/event"
	"github.com/tengqur/flexx/session"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func clockDecl() component.Declaration {
	return component.Declaration{
		Module: "demo",
		Name:   "Clock",
		Properties: []event.PropertyDef{
			{Name: "ticks", Default: 0, Validate: event.Int()},
		},
		Actions: map[string]component.ActionFunc{
			"tick": func(c *component.LocalComponent, args []any) error {
				cur, _ := c.Get("ticks")
				return c.Set("ticks", cur.(int)+1)
			},
		},
	}
}

func testConfig(name string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Name = name
	cfg.App.Environment = config.EnvTesting
	cfg.Server.TCP.Address = "127.0.0.1:0"
	return cfg
}

// startServer starts a runtime that hosts a Clock instance per session.
func startServer(t *testing.T) (*App, string) {
	t.Helper()

	server := New(testConfig("server"))
	if err := server.RegisterClass(clockDecl(), component.RoleLocal); err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	spec, _ := server.Classes().LookupLocal("demo", "Clock")
	server.OnSession(func(s *session.Session) {
		server.Loop().Post(func() {
			if _, err := component.NewLocal(spec, s); err != nil {
				t.Errorf("NewLocal failed: %v", err)
			}
		})
	})
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Server start failed: %v", err)
	}
	t.Cleanup(func() { server.Shutdown(context.Background()) })
	return server, server.TCPAddr().String()
}

func startClient(t *testing.T, addr string) (*App, *session.Session) {
	t.Helper()

	client := New(testConfig("client"))
	client.Config().Server.TCP.Enabled = false
	if err := client.RegisterClass(clockDecl(), component.RoleProxy); err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Client start failed: %v", err)
	}
	t.Cleanup(func() { client.Shutdown(context.Background()) })

	sess, err := client.Connect(addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return client, sess
}

// proxyOn waits for the single proxy instantiated on a client session.
func proxyOn(t *testing.T, client *App, sess *session.Session) *component.ProxyComponent {
	t.Helper()

	var proxy *component.ProxyComponent
	eventually(t, "proxy instantiation", func() bool {
		// The server binds exactly one component per session
		for _, c := range sess.Components() {
			if pc, ok := c.(*component.ProxyComponent); ok {
				proxy = pc
				return true
			}
		}
		return false
	})
	return proxy
}

func TestEndToEndOverTCP(t *testing.T) {
	server, addr := startServer(t)
	client, sess := startClient(t, addr)

	eventually(t, "server session", func() bool { return server.Sessions().Len() == 1 })
	proxy := proxyOn(t, client, sess)

	// Action runs on the server, the property change replicates back
	client.Loop().Post(func() { proxy.ProxyAction("tick") })
	eventually(t, "tick replication", func() bool {
		var v any
		client.Loop().Call(func() { v, _ = proxy.Get("ticks") })
		return v == float64(1)
	})
}

func TestSessionLimit(t *testing.T) {
	server := New(testConfig("limited"))
	server.Config().Session.MaxSessions = 1
	if err := server.RegisterClass(clockDecl(), component.RoleLocal); err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Server start failed: %v", err)
	}
	t.Cleanup(func() { server.Shutdown(context.Background()) })
	addr := server.TCPAddr().String()

	_, first := startClient(t, addr)
	eventually(t, "first session", func() bool { return server.Sessions().Len() == 1 })

	second := New(testConfig("second"))
	second.Config().Server.TCP.Enabled = false
	second.RegisterClass(clockDecl(), component.RoleProxy)
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Second client start failed: %v", err)
	}
	t.Cleanup(func() { second.Shutdown(context.Background()) })

	rejected, err := second.Connect(addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	// The server closes the channel, which cascades into the session
	eventually(t, "rejection", func() bool {
		select {
		case <-rejected.Done():
			return true
		default:
			return false
		}
	})
	if server.Sessions().Len() != 1 {
		t.Errorf("Expected 1 session, got %d", server.Sessions().Len())
	}
	_ = first
}

func TestShutdownClosesSessions(t *testing.T) {
	server, addr := startServer(t)
	_, sess := startClient(t, addr)

	eventually(t, "session open", func() bool { return server.Sessions().Len() == 1 })
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	eventually(t, "client session close", func() bool {
		select {
		case <-sess.Done():
			return true
		default:
			return false
		}
	})
}

func TestDoubleStart(t *testing.T) {
	a := New(testConfig("double"))
	a.Config().Server.TCP.Enabled = false
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	if err := a.Start(context.Background()); err == nil {
		t.Error("Second start should fail")
	}
}
