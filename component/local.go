package component

import (
	"fmt"

	"github.com/tengqur/flexx/event"
)

// LocalComponent holds canonical property and action state and replicates
// relevant state changes to every attached session. A component may be
// attached to zero sessions (not yet shared), one, or several (shared
// across viewers); the list never contains duplicates.
type LocalComponent struct {
	*event.Component

	spec     LocalSpec
	sessions []Session

	// eventTypesAtProxy maps session id to the event types that
	// session's proxy currently cares about; updated only via the
	// _set_event_types endpoint invoked by the peer
	eventTypesAtProxy map[string][]string
}

// NewLocal creates a local component and attaches it to the given
// sessions. Each attachment registers the component and sends an
// INSTANTIATE command to that peer.
func NewLocal(spec LocalSpec, sessions ...Session) (*LocalComponent, error) {
	c := newLocal(spec)
	for _, s := range sessions {
		if err := c.Attach(s, nil, nil); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AdoptLocal creates the real instance for an incoming INSTANTIATE
// command: the component is bound to the originating session under the
// peer-supplied id and no INSTANTIATE is sent back, since the peer
// already holds its proxy.
func AdoptLocal(spec LocalSpec, s Session, id string, initArgs []any, kwargs map[string]any) (*LocalComponent, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	c := newLocal(spec)
	c.SetID(id)
	s.Register(c)
	c.sessions = append(c.sessions, s)
	if spec.Init != nil {
		if err := spec.Init(c, initArgs, kwargs); err != nil {
			return nil, fmt.Errorf("init %s: %w", spec.Name, err)
		}
	}
	return c, nil
}

func newLocal(spec LocalSpec) *LocalComponent {
	c := &LocalComponent{
		Component:         event.NewComponent(spec.Properties),
		spec:              spec,
		eventTypesAtProxy: make(map[string][]string),
	}
	c.Component.EmitHook = c.forward
	for _, rd := range spec.Reactions {
		rd := rd
		c.Component.React(func(ev event.Event) { rd.Fn(c, ev) }, rd.Types...)
	}
	return c
}

// Spec returns the descriptor set this component was built from.
func (c *LocalComponent) Spec() LocalSpec {
	return c.spec
}

// Attach registers the component with a session and sends an INSTANTIATE
// command carrying module, class name, id and constructor arguments.
// Attaching an already attached session is a no-op, so the call is
// idempotent with respect to other sessions.
func (c *LocalComponent) Attach(s Session, initArgs []any, kwargs map[string]any) error {
	if s == nil {
		return ErrNilSession
	}
	for _, attached := range c.sessions {
		if attached == s {
			return nil
		}
	}
	s.Register(c)
	c.sessions = append(c.sessions, s)
	s.SendCommand(Command{
		Kind:   CommandInstantiate,
		Module: c.spec.Module,
		Class:  c.spec.Name,
		ID:     c.ID(),
		Args:   initArgs,
		KWArgs: kwargs,
	})
	return nil
}

// Sessions returns the attached sessions in attachment order.
func (c *LocalComponent) Sessions() []Session {
	out := make([]Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// SessionIDs returns the ids of the attached sessions.
func (c *LocalComponent) SessionIDs() []string {
	ids := make([]string, len(c.sessions))
	for i, s := range c.sessions {
		ids[i] = s.ID()
	}
	return ids
}

// SetEventTypes replaces the subscription entry for a session. Called
// exclusively by the peer through the _set_event_types endpoint, never by
// local code.
func (c *LocalComponent) SetEventTypes(sessionID string, types []string) {
	c.eventTypesAtProxy[sessionID] = types
}

// CallMethod invokes a plain method. Methods exist only on the local
// side and are not reachable over the wire.
func (c *LocalComponent) CallMethod(name string, args []any) (any, error) {
	m, ok := c.spec.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownMethod, name, c.spec.Name)
	}
	return m(c, args)
}

// Invoke dispatches an incoming INVOKE command: the reserved
// _set_event_types endpoint or a declared action.
func (c *LocalComponent) Invoke(method string, args []any) error {
	if method == MethodSetEventTypes {
		if len(args) != 2 {
			return fmt.Errorf("%s: %w (want 2, got %d)", MethodSetEventTypes, ErrBadArgCount, len(args))
		}
		sessionID, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("%s: %w", MethodSetEventTypes, ErrBadEventArg)
		}
		types, err := stringsFromArg(args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", MethodSetEventTypes, err)
		}
		c.SetEventTypes(sessionID, types)
		return nil
	}

	action, ok := c.spec.Actions[method]
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownAction, method, c.spec.Name)
	}
	return action(c, args)
}

// SessionClosed detaches a torn-down session. The component itself
// persists until explicitly disposed, independent of the number of
// remaining sessions.
func (c *LocalComponent) SessionClosed(sessionID string) {
	for i, s := range c.sessions {
		if s.ID() == sessionID {
			c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
			break
		}
	}
	delete(c.eventTypesAtProxy, sessionID)
}

// forward runs after local dispatch of every emitted event and decides
// per session whether synchronization traffic is needed: property changes
// go to every attached session, plain events only to sessions whose
// subscription set contains the type. Never called once disposed, since
// emit is a no-op then.
func (c *LocalComponent) forward(ev event.Event) {
	isProperty := c.HasProperty(ev.Type)
	for _, s := range c.sessions {
		if isProperty || containsString(c.eventTypesAtProxy[s.ID()], ev.Type) {
			s.SendCommand(Command{
				Kind:   CommandInvoke,
				ID:     c.ID(),
				Method: MethodEmitFromOtherSide,
				Args:   []any{ev},
			})
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
