package event

// Reaction is a registered event subscription on a component.
type Reaction struct {
	owner    *Component
	fn       func(Event)
	types    []string
	disposed bool
}

// Types returns the event types this reaction is registered for. Empty
// means the reaction receives every event.
func (r *Reaction) Types() []string {
	types := make([]string, len(r.types))
	copy(types, r.types)
	return types
}

// Dispose unregisters the reaction. Idempotent.
func (r *Reaction) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	for i, other := range r.owner.reactions {
		if other == r {
			r.owner.reactions = append(r.owner.reactions[:i], r.owner.reactions[i+1:]...)
			break
		}
	}
	r.owner.notifyReactionTypes()
}

// matches reports whether the reaction should receive an event of the
// given type.
func (r *Reaction) matches(eventType string) bool {
	if len(r.types) == 0 {
		return true
	}
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}
