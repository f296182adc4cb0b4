package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/tengqur/flexx/codec"
	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/event"
	"github.com/tengqur/flexx/network"
)

// Session is one synchronization peer link: an ordered, fire-and-forget
// command stream over a channel, plus the registry of components bound
// to this session.
type Session struct {
	id         string
	classes    *component.Registry
	serializer *codec.Serializer
	loop       *event.Loop
	channel    network.Channel

	mu         sync.RWMutex
	components map[string]component.Registrant
	counter    int

	closed    int32
	closeOnce sync.Once
	done      chan struct{}

	// onClose is set by the manager to drop the session on teardown
	onClose func(*Session)

	// onRename is set by the manager to rekey the session when the
	// handshake settles on the peer's id
	onRename func(s *Session, oldID string)
}

// hello is the handshake frame each end sends before any command. Both
// ends adopt the smaller of the two ids, so one logical session carries
// the same id on both sides.
type hello struct {
	Hello string `json:"hello"`
}

// New creates a session over a channel. The class registry resolves
// incoming INSTANTIATE commands; the loop, when not nil, is where all
// inbound dispatch runs. Call Start to begin reading.
func New(ch network.Channel, classes *component.Registry, serializer *codec.Serializer, loop *event.Loop) (*Session, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	return &Session{
		id:         ulid.Make().String(),
		classes:    classes,
		serializer: serializer,
		loop:       loop,
		channel:    ch,
		components: make(map[string]component.Registrant),
		done:       make(chan struct{}),
	}, nil
}

// ID returns the session id. Until the handshake settles this is the
// locally generated id; afterwards both ends report the same id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start sends the handshake and begins reading inbound commands.
func (s *Session) Start() {
	if frame, err := json.Marshal(hello{Hello: s.ID()}); err == nil {
		if err := s.channel.Send(frame); err != nil {
			glog.V(1).Infof("session %s: handshake not sent: %v", s.ID(), err)
		}
	}
	go s.readLoop()
}

// SendCommand serializes a command and queues it on the channel.
// Delivery is in order and fire-and-forget: failures are logged, never
// reported back, and a closed session swallows the command silently.
func (s *Session) SendCommand(cmd component.Command) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return
	}
	frame, err := s.serializer.EncodeCommand(cmd)
	if err != nil {
		glog.Errorf("session %s: encode %s: %v", s.ID(), cmd, err)
		return
	}
	if err := s.channel.Send(frame); err != nil {
		glog.V(1).Infof("session %s: dropped %s: %v", s.ID(), cmd, err)
	}
}

// Register adds a component to the session registry, assigning an id
// when the component does not have one yet, and returns the id.
func (s *Session) Register(c component.Registrant) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.ID()
	if id == "" {
		s.counter++
		id = fmt.Sprintf("%s_c%d", s.id, s.counter)
		c.SetID(id)
	}
	s.components[id] = c
	return id
}

// Unregister removes a component from the session registry. Unknown ids
// are ignored.
func (s *Session) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.components, id)
}

// Lookup finds a registered component by id.
func (s *Session) Lookup(id string) (component.Registrant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[id]
	return c, ok
}

// Components returns the registered components in unspecified order.
func (s *Session) Components() []component.Registrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]component.Registrant, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c)
	}
	return out
}

// ComponentCount returns the number of registered components.
func (s *Session) ComponentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.components)
}

// Close tears down the session: the channel is closed and every bound
// component is notified. Local components detach this session and live
// on; proxies dispose themselves. Closing twice is a no-op.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		s.channel.Close()

		s.mu.Lock()
		id := s.id
		bound := make([]component.Registrant, 0, len(s.components))
		for _, c := range s.components {
			bound = append(bound, c)
		}
		s.components = make(map[string]component.Registrant)
		s.mu.Unlock()

		notify := func() {
			for _, c := range bound {
				c.SessionClosed(id)
			}
		}
		if s.loop == nil || s.loop.Post(notify) != nil {
			notify()
		}

		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
		glog.V(1).Infof("session %s closed, %d components notified", id, len(bound))
	})
	return nil
}

// readLoop reads frames until the channel fails, then tears the session
// down. The first frame is expected to be the peer's handshake.
func (s *Session) readLoop() {
	first := true
	for {
		frame, err := s.channel.Receive()
		if err != nil {
			s.Close()
			return
		}
		if first {
			first = false
			var h hello
			if json.Unmarshal(frame, &h) == nil && h.Hello != "" {
				s.adoptID(h.Hello)
				continue
			}
			// A peer that skips the handshake keeps distinct ids
		}
		cmd, err := s.serializer.DecodeCommand(frame)
		if err != nil {
			glog.Warningf("session %s: bad command: %v", s.ID(), err)
			continue
		}
		s.dispatch(cmd)
	}
}

// adoptID settles the shared session id: both ends keep the smaller of
// the two generated ids.
func (s *Session) adoptID(peerID string) {
	s.mu.Lock()
	if peerID >= s.id {
		s.mu.Unlock()
		return
	}
	oldID := s.id
	s.id = peerID
	s.mu.Unlock()

	if s.onRename != nil {
		s.onRename(s, oldID)
	}
	glog.V(2).Infof("session %s adopted peer id (was %s)", peerID, oldID)
}

// dispatch routes a decoded command onto the loop when one is attached,
// keeping component state loop-confined.
func (s *Session) dispatch(cmd component.Command) {
	if s.loop != nil && s.loop.Post(func() { s.handle(cmd) }) == nil {
		return
	}
	s.handle(cmd)
}

// handle executes one inbound command. There is no reply path: errors
// are logged and the command is dropped.
func (s *Session) handle(cmd component.Command) {
	switch cmd.Kind {
	case component.CommandInstantiate:
		s.handleInstantiate(cmd)
	case component.CommandInvoke:
		s.handleInvoke(cmd)
	default:
		glog.Warningf("session %s: dropped %s", s.ID(), cmd)
	}
}

// handleInstantiate adopts the counterpart instance for a peer-created
// component, choosing the side by the registered role of the class.
func (s *Session) handleInstantiate(cmd component.Command) {
	role, ok := s.classes.Role(cmd.Module, cmd.Class)
	if !ok {
		glog.Warningf("session %s: unknown class %s.%s", s.ID(), cmd.Module, cmd.Class)
		return
	}
	switch role {
	case component.RoleLocal:
		spec, _ := s.classes.LookupLocal(cmd.Module, cmd.Class)
		if _, err := component.AdoptLocal(spec, s, cmd.ID, cmd.Args, cmd.KWArgs); err != nil {
			glog.Errorf("session %s: %s: %v", s.ID(), cmd, err)
		}
	case component.RoleProxy:
		spec, _ := s.classes.LookupProxy(cmd.Module, cmd.Class)
		if _, err := component.AdoptProxy(spec, s, cmd.ID); err != nil {
			glog.Errorf("session %s: %s: %v", s.ID(), cmd, err)
		}
	}
}

// handleInvoke forwards a method call to the target component. A
// missing target is expected after a dispose raced an inbound command.
func (s *Session) handleInvoke(cmd component.Command) {
	c, ok := s.Lookup(cmd.ID)
	if !ok {
		glog.V(1).Infof("session %s: %s on unknown component", s.ID(), cmd)
		return
	}
	if err := c.Invoke(cmd.Method, cmd.Args); err != nil {
		glog.Errorf("session %s: %s: %v", s.ID(), cmd, err)
	}
}
