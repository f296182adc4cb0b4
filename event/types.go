package event

import "fmt"

// Mutation discriminators carried on property-change events. MutationSet
// replaces the whole value; the others are positional edits on list
// properties.
const (
	MutationSet     = "set"
	MutationInsert  = "insert"
	MutationRemove  = "remove"
	MutationReplace = "replace"
)

// Event represents a single event raised on a component. When the event
// represents a property change, Type names the property and Mutation
// carries the discriminator; plain events carry only Type and Info.
type Event struct {
	// Type is the event type name, or the property name for changes
	Type string `json:"type"`

	// Mutation is the mutation discriminator, empty for plain events
	Mutation string `json:"mutation,omitempty"`

	// NewValue is the replacement value for a "set" mutation
	NewValue any `json:"new_value,omitempty"`

	// Objects are the affected elements for a positional edit
	Objects []any `json:"objects,omitempty"`

	// Index is the position of a positional edit
	Index int `json:"index,omitempty"`

	// Info contains additional payload fields for plain events
	Info map[string]any `json:"info,omitempty"`
}

// IsMutation reports whether the event carries property mutation metadata.
func (ev Event) IsMutation() bool {
	return ev.Mutation != ""
}

// ValidateFunc normalizes and validates a candidate property value. It
// returns the value to store, or an error when the value is rejected.
type ValidateFunc func(value any) (any, error)

// PropertyDef declares a single observable property.
type PropertyDef struct {
	// Name is the property name, unique within a declaration
	Name string

	// Default is the initial value
	Default any

	// List marks an ordered-sequence property eligible for positional edits
	List bool

	// Validate normalizes candidate values; nil accepts any value
	Validate ValidateFunc
}

// property is the per-instance slot backing a PropertyDef.
type property struct {
	def   PropertyDef
	value any
}

// Int returns a validator that accepts integer values.
func Int() ValidateFunc {
	return func(value any) (any, error) {
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			// JSON numbers decode as float64
			return int(v), nil
		default:
			return nil, fmt.Errorf("%w: expected int, got %T", ErrInvalidValue, value)
		}
	}
}

// String returns a validator that accepts string values.
func String() ValidateFunc {
	return func(value any) (any, error) {
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, value)
	}
}

// Float returns a validator that accepts numeric values as float64.
func Float() ValidateFunc {
	return func(value any) (any, error) {
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, value)
		}
	}
}

// Bool returns a validator that accepts boolean values.
func Bool() ValidateFunc {
	return func(value any) (any, error) {
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: expected bool, got %T", ErrInvalidValue, value)
	}
}

// List returns a validator that accepts []any values.
func List() ValidateFunc {
	return func(value any) (any, error) {
		if value == nil {
			return []any{}, nil
		}
		if l, ok := value.([]any); ok {
			return l, nil
		}
		return nil, fmt.Errorf("%w: expected list, got %T", ErrInvalidValue, value)
	}
}
