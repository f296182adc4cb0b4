package component

import (
	"fmt"

	"github.com/tengqur/flexx/event"
)

// ProxyComponent stands in for a component whose canonical state lives in
// the peer runtime. It forwards action calls outward, accepts mutation
// and event commands inward, and never mutates its own properties except
// via the sanctioned inbound path. A proxy is bound to exactly one
// session for its whole life; anything else is a programming error.
type ProxyComponent struct {
	*event.Component

	spec    ProxySpec
	session Session
}

// NewProxy creates a proxy on the initiating side: the component is
// registered with its one session and an INSTANTIATE command carrying the
// constructor arguments is sent to the peer, where the real instance is
// created. The arguments are not retained afterwards.
func NewProxy(spec ProxySpec, s Session, initArgs []any, kwargs map[string]any) (*ProxyComponent, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	p := newProxy(spec, s)
	s.Register(p)
	s.SendCommand(Command{
		Kind:   CommandInstantiate,
		Module: spec.Module,
		Class:  spec.Name,
		ID:     p.ID(),
		Args:   initArgs,
		KWArgs: kwargs,
	})
	return p, nil
}

// AdoptProxy creates a proxy for an incoming INSTANTIATE command. The
// session already knows about the peer's instance, so no outbound command
// is sent.
func AdoptProxy(spec ProxySpec, s Session, id string) (*ProxyComponent, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	p := newProxy(spec, s)
	p.SetID(id)
	s.Register(p)
	return p, nil
}

func newProxy(spec ProxySpec, s Session) *ProxyComponent {
	p := &ProxyComponent{
		Component: event.NewComponent(spec.Properties),
		spec:      spec,
		session:   s,
	}
	// Keep the peer's emit-side filter accurate: whenever the set of
	// event types our reactions care about changes, push it across.
	// Local bookkeeping never gates on this notification.
	p.Component.ReactionTypesHook = func(types []string) {
		if p.IsDisposed() {
			return
		}
		p.session.SendCommand(Command{
			Kind:   CommandInvoke,
			ID:     p.ID(),
			Method: MethodSetEventTypes,
			Args:   []any{p.session.ID(), types},
		})
	}
	return p
}

// Spec returns the descriptor set this proxy was built from.
func (p *ProxyComponent) Spec() ProxySpec {
	return p.spec
}

// Session returns the one session this proxy is bound to.
func (p *ProxyComponent) Session() Session {
	return p.session
}

// SessionIDs returns the single-element session id list.
func (p *ProxyComponent) SessionIDs() []string {
	return []string{p.session.ID()}
}

// Set rejects direct property mutation. Canonical state lives with the
// peer; mutations may only arrive through the inbound event path.
func (p *ProxyComponent) Set(name string, value any) error {
	return fmt.Errorf("set %q on %s: %w", name, p.spec.Name, ErrProxyMutation)
}

// MutateInsert rejects direct property mutation on a proxy.
func (p *ProxyComponent) MutateInsert(name string, objects []any, index int) error {
	return fmt.Errorf("insert into %q on %s: %w", name, p.spec.Name, ErrProxyMutation)
}

// MutateRemove rejects direct property mutation on a proxy.
func (p *ProxyComponent) MutateRemove(name string, index, count int) error {
	return fmt.Errorf("remove from %q on %s: %w", name, p.spec.Name, ErrProxyMutation)
}

// MutateReplace rejects direct property mutation on a proxy.
func (p *ProxyComponent) MutateReplace(name string, objects []any, index int) error {
	return fmt.Errorf("replace in %q on %s: %w", name, p.spec.Name, ErrProxyMutation)
}

// ProxyAction sends an INVOKE command naming the component id, the action
// name and its arguments to the peer. Fire-and-forget: no return value
// and no reply. Silent no-op once disposed.
func (p *ProxyComponent) ProxyAction(name string, args ...any) {
	if p.IsDisposed() {
		return
	}
	p.session.SendCommand(Command{
		Kind:   CommandInvoke,
		ID:     p.ID(),
		Method: name,
		Args:   args,
	})
}

// EmitFromOtherSide is the single inbound entry point for peer-originated
// updates. A property-change event is applied directly to underlying
// storage, bypassing the validating setter (the peer already validated);
// anything else is emitted locally so reactions observe it exactly as if
// raised on the real instance.
func (p *ProxyComponent) EmitFromOtherSide(ev event.Event) error {
	if p.HasProperty(ev.Type) && ev.IsMutation() {
		return p.Component.ApplyMutation(ev)
	}
	p.Component.EmitEvent(ev)
	return nil
}

// Invoke dispatches an incoming INVOKE command: the reserved
// _emit_from_other_side endpoint, or a declared action stub which is
// forwarded onward to the peer.
func (p *ProxyComponent) Invoke(method string, args []any) error {
	if method == MethodEmitFromOtherSide {
		if len(args) != 1 {
			return fmt.Errorf("%s: %w (want 1, got %d)", MethodEmitFromOtherSide, ErrBadArgCount, len(args))
		}
		ev, err := EventFromArg(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", MethodEmitFromOtherSide, err)
		}
		return p.EmitFromOtherSide(ev)
	}

	for _, name := range p.spec.Actions {
		if name == method {
			p.ProxyAction(method, args...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q on proxy %s", ErrUnknownAction, method, p.spec.Name)
}

// SessionClosed disposes the proxy: its one session is gone, so the
// stand-in cannot function anymore.
func (p *ProxyComponent) SessionClosed(sessionID string) {
	if p.session.ID() == sessionID {
		p.Dispose()
	}
}
