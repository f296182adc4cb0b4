package session

import (
	"sync"

	"github.com/tengqur/flexx/codec"
	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/event"
	"github.com/tengqur/flexx/network"
)

// Manager tracks every open session in the process and opens new ones
// with a shared class registry, serializer and loop. It implements the
// codec resolver used to embed component references in payloads.
type Manager struct {
	classes    *component.Registry
	serializer *codec.Serializer
	loop       *event.Loop

	mu       sync.RWMutex
	sessions map[string]*Session
	onOpen   []func(*Session)
}

// NewManager creates a manager. The serializer gains a component
// reference extension resolving against this manager.
func NewManager(classes *component.Registry, serializer *codec.Serializer, loop *event.Loop) *Manager {
	m := &Manager{
		classes:    classes,
		serializer: serializer,
		loop:       loop,
		sessions:   make(map[string]*Session),
	}
	serializer.AddExtension(codec.NewComponentExtension(m))
	return m
}

// Open creates, tracks and starts a session over the channel.
func (m *Manager) Open(ch network.Channel) (*Session, error) {
	s, err := New(ch, m.classes, m.serializer, m.loop)
	if err != nil {
		return nil, err
	}
	s.onClose = m.drop
	s.onRename = m.rekey

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	s.Start()

	m.mu.RLock()
	callbacks := make([]func(*Session), len(m.onOpen))
	copy(callbacks, m.onOpen)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(s)
	}
	return s, nil
}

// OnOpen registers a callback invoked for every session opened through
// this manager. Server runtimes use it to bind per-session components.
func (m *Manager) OnOpen(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpen = append(m.onOpen, fn)
}

// ByID finds an open session.
func (m *Manager) ByID(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears down every open session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
}

// ComponentByID resolves a component reference arriving in a payload.
// It satisfies the codec resolver interface.
func (m *Manager) ComponentByID(sessionID, componentID string) (any, bool) {
	s, ok := m.ByID(sessionID)
	if !ok {
		return nil, false
	}
	c, ok := s.Lookup(componentID)
	if !ok {
		return nil, false
	}
	return c, true
}

// drop removes a closed session from the registry.
func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID())
}

// rekey moves a session to the id settled by the handshake.
func (m *Manager) rekey(s *Session, oldID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, oldID)
	m.sessions[s.ID()] = s
}
