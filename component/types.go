package component

import (
	"fmt"

	"github.com/tengqur/flexx/event"
)

// CommandKind defines the kind of command carried over a session.
type CommandKind string

const (
	// CommandInstantiate asks the peer to create an instance of a class
	CommandInstantiate CommandKind = "INSTANTIATE"

	// CommandInvoke asks the peer to call a method on an instance
	CommandInvoke CommandKind = "INVOKE"
)

// Reserved inbound method names used by the synchronization protocol
// itself.
const (
	// MethodEmitFromOtherSide is the single inbound entry point for all
	// peer-originated updates on a proxy
	MethodEmitFromOtherSide = "_emit_from_other_side"

	// MethodSetEventTypes replaces a session's event-type subscription
	// set on the local side
	MethodSetEventTypes = "_set_event_types"
)

// Command is a discrete one-way message carried over a session. Delivery
// is ordered per session and fire-and-forget: there is no reply channel
// and no result value observable by the sender.
type Command struct {
	// Kind is the command kind
	Kind CommandKind `json:"kind"`

	// Module and Class identify the paired class for INSTANTIATE
	Module string `json:"module,omitempty"`
	Class  string `json:"class,omitempty"`

	// ID identifies the target instance within the session registry
	ID string `json:"id"`

	// Method is the method name for INVOKE
	Method string `json:"method,omitempty"`

	// Args are the call or constructor arguments
	Args []any `json:"args,omitempty"`

	// KWArgs are the keyword constructor arguments for INSTANTIATE
	KWArgs map[string]any `json:"kwargs,omitempty"`
}

// String returns a short description of the command for logging.
func (cmd Command) String() string {
	switch cmd.Kind {
	case CommandInstantiate:
		return fmt.Sprintf("INSTANTIATE %s.%s id=%s", cmd.Module, cmd.Class, cmd.ID)
	case CommandInvoke:
		return fmt.Sprintf("INVOKE %s.%s(%d args)", cmd.ID, cmd.Method, len(cmd.Args))
	default:
		return fmt.Sprintf("unknown(%s)", string(cmd.Kind))
	}
}

// Session is the surface of a session channel the synchronization core
// uses: an ordered, asynchronous, one-way command stream with an id-based
// component registry.
type Session interface {
	// ID returns the session id
	ID() string

	// SendCommand queues a command for delivery to the peer. Commands
	// are delivered in the order sent; there is no result.
	SendCommand(cmd Command)

	// Register adds a component to the session registry, assigning an
	// id when the component does not have one, and returns the id.
	Register(c Registrant) string

	// Lookup finds a registered component by id.
	Lookup(id string) (Registrant, bool)
}

// Registrant is a component that can be registered with a session.
type Registrant interface {
	// ID returns the component id, empty until assigned
	ID() string

	// SetID assigns the component id at registration time
	SetID(id string)

	// Invoke calls a named method with positional arguments; this is
	// the target of incoming INVOKE commands
	Invoke(method string, args []any) error

	// SessionClosed notifies the component that a session it is bound
	// to has been torn down
	SessionClosed(sessionID string)
}

// Synced is the surface the reference codec needs to embed a component
// as a value inside a serialized payload.
type Synced interface {
	ID() string

	// SessionIDs returns the ids of the attached sessions
	SessionIDs() []string
}

// EventFromArg rebuilds an event record from a decoded command argument.
// Arguments arrive either as an event.Event (same-process sessions) or as
// a generic map produced by the wire codec.
func EventFromArg(arg any) (event.Event, error) {
	switch v := arg.(type) {
	case event.Event:
		return v, nil
	case map[string]any:
		ev := event.Event{}
		if s, ok := v["type"].(string); ok {
			ev.Type = s
		}
		if s, ok := v["mutation"].(string); ok {
			ev.Mutation = s
		}
		ev.NewValue = v["new_value"]
		if objs, ok := v["objects"].([]any); ok {
			ev.Objects = objs
		}
		switch idx := v["index"].(type) {
		case int:
			ev.Index = idx
		case float64:
			ev.Index = int(idx)
		}
		if info, ok := v["info"].(map[string]any); ok {
			ev.Info = info
		}
		return ev, nil
	default:
		return event.Event{}, fmt.Errorf("%w: %T", ErrBadEventArg, arg)
	}
}

// stringsFromArg converts a decoded command argument to a string slice.
func stringsFromArg(arg any) ([]string, error) {
	switch v := arg.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %T in list", ErrBadEventArg, item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadEventArg, arg)
	}
}
