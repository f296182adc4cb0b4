package codec

import (
	"fmt"

	"github.com/tengqur/flexx/component"
)

// UnknownComponent is the sentinel substituted for a reference whose
// session or component cannot be resolved during decode.
const UnknownComponent = "unknown_component"

// SessionResolver resolves a component by session id and component id.
// The process-wide session manager implements this.
type SessionResolver interface {
	ComponentByID(sessionID, componentID string) (any, bool)
}

// ComponentExtension embeds live component references in serialized
// payloads as {session_id, id} and resolves them by registry lookup on
// the far side.
type ComponentExtension struct {
	resolver SessionResolver
}

// NewComponentExtension creates the extension with the resolver used for
// decode-side lookups.
func NewComponentExtension(resolver SessionResolver) *ComponentExtension {
	return &ComponentExtension{resolver: resolver}
}

// Name returns the envelope name for component references.
func (e *ComponentExtension) Name() string {
	return "flexx.component"
}

// Match reports whether the value participates in the sync system.
func (e *ComponentExtension) Match(value any) bool {
	_, ok := value.(component.Synced)
	return ok
}

// Encode produces the {session_id, id} reference. A component attached
// to zero or several sessions cannot be referenced unambiguously; that is
// a core invariant breach, not a recoverable condition.
func (e *ComponentExtension) Encode(value any) (any, error) {
	c := value.(component.Synced)
	ids := c.SessionIDs()
	if len(ids) != 1 {
		panic(fmt.Sprintf("codec: component %q must have exactly one session to be encoded, has %d", c.ID(), len(ids)))
	}
	return map[string]any{"session_id": ids[0], "id": c.ID()}, nil
}

// Decode resolves a reference against the session registry. Any lookup
// failure degrades to a sentinel placeholder so the remainder of the
// containing payload still decodes.
func (e *ComponentExtension) Decode(data any) (any, error) {
	ref, ok := data.(map[string]any)
	if !ok {
		return UnknownComponent, nil
	}
	sessionID, _ := ref["session_id"].(string)
	id, _ := ref["id"].(string)
	if e.resolver != nil {
		if c, ok := e.resolver.ComponentByID(sessionID, id); ok {
			return c, nil
		}
	}
	if id != "" {
		return id, nil
	}
	return UnknownComponent, nil
}
