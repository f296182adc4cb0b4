package event

import (
	"fmt"
	"sort"
)

// Component is a per-instance store of observable properties with change
// tracking, plus an emit/react mechanism. A Component is confined to one
// runtime Loop: all property mutation, emit and react calls are expected
// to run on that loop, so no internal locking is performed.
type Component struct {
	id        string
	props     map[string]*property
	reactions []*Reaction
	disposed  bool

	// EmitHook, when set, is invoked after local dispatch for every
	// emitted event. The synchronization layer uses it to forward
	// events across sessions.
	EmitHook func(Event)

	// ReactionTypesHook, when set, is invoked with the recomputed set of
	// event types whenever the reactions registered on this component
	// change.
	ReactionTypesHook func(types []string)
}

// NewComponent creates a component with the given property declarations.
// Defaults are stored as declared, without running validators.
func NewComponent(defs []PropertyDef) *Component {
	c := &Component{
		props: make(map[string]*property, len(defs)),
	}
	for _, def := range defs {
		value := def.Default
		if def.List && value == nil {
			value = []any{}
		}
		c.props[def.Name] = &property{def: def, value: value}
	}
	return c
}

// ID returns the component id. Empty until assigned at registration time.
func (c *Component) ID() string {
	return c.id
}

// SetID assigns the component id.
func (c *Component) SetID(id string) {
	c.id = id
}

// HasProperty reports whether name is a declared property.
func (c *Component) HasProperty(name string) bool {
	_, ok := c.props[name]
	return ok
}

// Get returns the current value of a property.
func (c *Component) Get(name string) (any, bool) {
	p, ok := c.props[name]
	if !ok {
		return nil, false
	}
	return p.value, true
}

// Set replaces the value of a property through the validating path and
// emits a property-change event. Silent no-op once disposed.
func (c *Component) Set(name string, value any) error {
	if c.disposed {
		return nil
	}
	p, ok := c.props[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if p.def.Validate != nil {
		v, err := p.def.Validate(value)
		if err != nil {
			return fmt.Errorf("set %q: %w", name, err)
		}
		value = v
	}
	p.value = value
	c.emit(Event{Type: name, Mutation: MutationSet, NewValue: value})
	return nil
}

// MutateInsert inserts objects at index in a list property through the
// validating path and emits the positional-edit event.
func (c *Component) MutateInsert(name string, objects []any, index int) error {
	if c.disposed {
		return nil
	}
	list, p, err := c.listValue(name)
	if err != nil {
		return err
	}
	if index < 0 || index > len(list) {
		return fmt.Errorf("insert %q at %d: %w", name, index, ErrIndexOutOfRange)
	}
	p.value = spliceInsert(list, objects, index)
	c.emit(Event{Type: name, Mutation: MutationInsert, Objects: objects, Index: index})
	return nil
}

// MutateRemove removes count elements at index from a list property and
// emits the positional-edit event carrying the removed elements.
func (c *Component) MutateRemove(name string, index, count int) error {
	if c.disposed {
		return nil
	}
	list, p, err := c.listValue(name)
	if err != nil {
		return err
	}
	if index < 0 || count < 0 || index+count > len(list) {
		return fmt.Errorf("remove %d from %q at %d: %w", count, name, index, ErrIndexOutOfRange)
	}
	removed := make([]any, count)
	copy(removed, list[index:index+count])
	p.value = spliceRemove(list, index, count)
	c.emit(Event{Type: name, Mutation: MutationRemove, Objects: removed, Index: index})
	return nil
}

// MutateReplace overwrites elements starting at index in a list property
// and emits the positional-edit event.
func (c *Component) MutateReplace(name string, objects []any, index int) error {
	if c.disposed {
		return nil
	}
	list, p, err := c.listValue(name)
	if err != nil {
		return err
	}
	if index < 0 || index+len(objects) > len(list) {
		return fmt.Errorf("replace in %q at %d: %w", name, index, ErrIndexOutOfRange)
	}
	next := make([]any, len(list))
	copy(next, list)
	copy(next[index:], objects)
	p.value = next
	c.emit(Event{Type: name, Mutation: MutationReplace, Objects: objects, Index: index})
	return nil
}

// ApplyMutation applies a property-change event received from the peer
// directly to underlying storage, bypassing validation. The change is
// still emitted locally so reactions observe it.
func (c *Component) ApplyMutation(ev Event) error {
	if c.disposed {
		return nil
	}
	p, ok := c.props[ev.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, ev.Type)
	}
	switch ev.Mutation {
	case MutationSet:
		p.value = ev.NewValue
	case MutationInsert:
		list, _ := p.value.([]any)
		if ev.Index < 0 || ev.Index > len(list) {
			return fmt.Errorf("apply insert to %q at %d: %w", ev.Type, ev.Index, ErrIndexOutOfRange)
		}
		p.value = spliceInsert(list, ev.Objects, ev.Index)
	case MutationRemove:
		list, _ := p.value.([]any)
		count := len(ev.Objects)
		if ev.Index < 0 || ev.Index+count > len(list) {
			return fmt.Errorf("apply remove to %q at %d: %w", ev.Type, ev.Index, ErrIndexOutOfRange)
		}
		p.value = spliceRemove(list, ev.Index, count)
	case MutationReplace:
		list, _ := p.value.([]any)
		if ev.Index < 0 || ev.Index+len(ev.Objects) > len(list) {
			return fmt.Errorf("apply replace to %q at %d: %w", ev.Type, ev.Index, ErrIndexOutOfRange)
		}
		next := make([]any, len(list))
		copy(next, list)
		copy(next[ev.Index:], ev.Objects)
		p.value = next
	default:
		return fmt.Errorf("unknown mutation %q on %q", ev.Mutation, ev.Type)
	}
	c.emit(ev)
	return nil
}

// Emit raises a plain event on this component. Silent no-op once disposed.
func (c *Component) Emit(eventType string, info map[string]any) {
	if c.disposed {
		return
	}
	c.emit(Event{Type: eventType, Info: info})
}

// EmitEvent raises a fully formed event record. Silent no-op once disposed.
func (c *Component) EmitEvent(ev Event) {
	if c.disposed {
		return
	}
	c.emit(ev)
}

// emit dispatches to reactions, then invokes the emit hook.
func (c *Component) emit(ev Event) {
	// Copy so reactions disposing themselves during dispatch are safe
	reactions := make([]*Reaction, len(c.reactions))
	copy(reactions, c.reactions)
	for _, r := range reactions {
		if r.disposed {
			continue
		}
		if r.matches(ev.Type) {
			r.fn(ev)
		}
	}
	if c.EmitHook != nil {
		c.EmitHook(ev)
	}
}

// React registers fn for the given event types and returns the reaction
// handle. A reaction with no types receives every event.
func (c *Component) React(fn func(Event), types ...string) *Reaction {
	r := &Reaction{owner: c, fn: fn, types: types}
	c.reactions = append(c.reactions, r)
	c.notifyReactionTypes()
	return r
}

// ReactionTypes returns the sorted union of event types the registered
// reactions care about.
func (c *Component) ReactionTypes() []string {
	seen := make(map[string]bool)
	for _, r := range c.reactions {
		if r.disposed {
			continue
		}
		for _, t := range r.types {
			seen[t] = true
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispose marks the component disposed. Idempotent; subsequent emit and
// mutation calls become silent no-ops.
func (c *Component) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.reactions = nil
}

// IsDisposed reports whether the component has been disposed.
func (c *Component) IsDisposed() bool {
	return c.disposed
}

// listValue resolves a list property for a positional edit.
func (c *Component) listValue(name string) ([]any, *property, error) {
	p, ok := c.props[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if !p.def.List {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotList, name)
	}
	list, _ := p.value.([]any)
	return list, p, nil
}

// notifyReactionTypes pushes the recomputed type set to the hook.
func (c *Component) notifyReactionTypes() {
	if c.ReactionTypesHook != nil {
		c.ReactionTypesHook(c.ReactionTypes())
	}
}

func spliceInsert(list, objects []any, index int) []any {
	next := make([]any, 0, len(list)+len(objects))
	next = append(next, list[:index]...)
	next = append(next, objects...)
	next = append(next, list[index:]...)
	return next
}

func spliceRemove(list []any, index, count int) []any {
	next := make([]any, 0, len(list)-count)
	next = append(next, list[:index]...)
	next = append(next, list[index+count:]...)
	return next
}
