package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/tengqur/flexx/codec"
	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/config"
	"github.com/tengqur/flexx/event"
	"github.com/tengqur/flexx/network"
	"github.com/tengqur/flexx/session"
)

// App is one synchronization runtime.
type App struct {
	config     *config.Config
	classes    *component.Registry
	serializer *codec.Serializer
	loop       *event.Loop
	sessions   *session.Manager

	tcpServer  *network.Server
	httpServer *http.Server

	mu      sync.Mutex
	running bool

	shutdownChan chan os.Signal
}

// New creates an app from a configuration. A nil configuration uses the
// defaults.
func New(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	classes := component.NewRegistry()
	serializer := codec.NewSerializer()
	loop := event.NewLoop(cfg.Loop.MailboxSize)
	sessions := session.NewManager(classes, serializer, loop)

	return &App{
		config:       cfg,
		classes:      classes,
		serializer:   serializer,
		loop:         loop,
		sessions:     sessions,
		shutdownChan: make(chan os.Signal, 1),
	}
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Classes returns the class registry.
func (a *App) Classes() *component.Registry {
	return a.classes
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Loop returns the dispatch loop. Component state must only be touched
// from this loop.
func (a *App) Loop() *event.Loop {
	return a.loop
}

// RegisterClass registers a paired class with the role this runtime
// plays for it.
func (a *App) RegisterClass(decl component.Declaration, role component.Role) error {
	return a.classes.Register(decl, role)
}

// OnSession registers a callback invoked for every session this runtime
// opens or accepts. Server runtimes bind their per-session components
// here.
func (a *App) OnSession(fn func(*session.Session)) {
	a.sessions.OnOpen(fn)
}

// TCPAddr returns the bound TCP listener address, or nil when the TCP
// listener is not running. Useful when configured with port 0.
func (a *App) TCPAddr() net.Addr {
	if a.tcpServer == nil {
		return nil
	}
	return a.tcpServer.Addr()
}

// Start brings up the loop and the configured listeners.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("app %s is already running", a.config.App.Name)
	}
	if err := a.loop.Start(ctx); err != nil {
		return fmt.Errorf("start loop: %w", err)
	}

	if a.config.Server.TCP.Enabled {
		tcpConfig := network.TCPConfig{
			WriteTimeout:      a.config.Server.TCP.WriteTimeout,
			HeartbeatInterval: a.config.Server.TCP.HeartbeatInterval,
		}
		a.tcpServer = network.NewServer(a.config.Server.TCP.Address, tcpConfig, a.handleChannel)
		if err := a.tcpServer.Start(); err != nil {
			a.loop.Stop()
			return err
		}
	}

	if a.config.Server.WebSocket.Enabled {
		mux := http.NewServeMux()
		mux.Handle(a.config.Server.WebSocket.Path, network.WebSocketHandler(a.handleChannel))
		a.httpServer = &http.Server{Addr: a.config.Server.WebSocket.Address, Handler: mux}
		go func() {
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("websocket listener failed: %v", err)
			}
		}()
		glog.Infof("websocket listening on %s%s", a.config.Server.WebSocket.Address, a.config.Server.WebSocket.Path)
	}

	a.running = true
	glog.Infof("%s started", a.config.App.Name)
	return nil
}

// Run starts the app and blocks until a shutdown signal arrives or the
// context is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	signal.Notify(a.shutdownChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-a.shutdownChan:
		glog.Infof("received %s, shutting down", sig)
	case <-ctx.Done():
		glog.Info("context cancelled, shutting down")
	}
	return a.Shutdown(context.Background())
}

// Shutdown stops the listeners, closes every session and stops the
// loop. Safe to call on a stopped app.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.tcpServer != nil {
		a.tcpServer.Stop()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			glog.Warningf("websocket listener shutdown: %v", err)
		}
	}

	a.sessions.CloseAll()
	a.loop.Stop()
	a.classes.Clear()

	glog.Infof("%s stopped", a.config.App.Name)
	return nil
}

// Connect dials a peer runtime over TCP and opens a session.
func (a *App) Connect(addr string) (*session.Session, error) {
	tcpConfig := network.TCPConfig{
		WriteTimeout:      a.config.Server.TCP.WriteTimeout,
		HeartbeatInterval: a.config.Server.TCP.HeartbeatInterval,
	}
	ch, err := network.Dial(addr, tcpConfig)
	if err != nil {
		return nil, err
	}
	return a.sessions.Open(ch)
}

// ConnectWebSocket dials a peer runtime over WebSocket and opens a
// session.
func (a *App) ConnectWebSocket(url string) (*session.Session, error) {
	ch, err := network.DialWebSocket(url)
	if err != nil {
		return nil, err
	}
	return a.sessions.Open(ch)
}

// handleChannel admits an inbound channel as a session, enforcing the
// configured session limit.
func (a *App) handleChannel(ch network.Channel) {
	limit := a.config.Session.MaxSessions
	if limit > 0 && a.sessions.Len() >= limit {
		glog.Warningf("session limit %d reached, rejecting connection", limit)
		ch.Close()
		return
	}
	if _, err := a.sessions.Open(ch); err != nil {
		glog.Errorf("open session: %v", err)
		ch.Close()
	}
}
