// Package codec implements the wire serializer for session payloads.
//
// Payloads are JSON with an extension envelope for values that need
// special treatment: {"__ext__": name, "data": ...}. Extensions are
// matched on encode and resolved by name on decode; an unresolved
// envelope degrades to its raw form rather than aborting the rest of
// the payload.
package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/event"
)

// extKey marks an extension envelope inside a JSON object.
const extKey = "__ext__"

// Extension converts values of one kind to and from a wire-safe form.
type Extension interface {
	// Name identifies the extension in the envelope
	Name() string

	// Match reports whether the extension handles this value
	Match(value any) bool

	// Encode produces the wire-safe replacement
	Encode(value any) (any, error)

	// Decode rebuilds the value from its wire form
	Decode(data any) (any, error)
}

// Serializer encodes and decodes payloads with a registered extension
// chain.
type Serializer struct {
	mu         sync.RWMutex
	extensions []Extension
}

// NewSerializer creates a serializer with no extensions.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// AddExtension registers an extension. Names must be unique.
func (s *Serializer) AddExtension(ext Extension) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.extensions {
		if existing.Name() == ext.Name() {
			return fmt.Errorf("%w: %s", ErrExtensionRegistered, ext.Name())
		}
	}
	s.extensions = append(s.extensions, ext)
	return nil
}

// Encode serializes a value to JSON, wrapping extension matches in
// envelopes.
func (s *Serializer) Encode(value any) ([]byte, error) {
	walked, err := s.encodeValue(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(walked)
}

// Decode deserializes JSON, resolving extension envelopes. A single
// unresolved envelope degrades in place; it never aborts decoding of the
// containing payload.
func (s *Serializer) Decode(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return s.decodeValue(raw), nil
}

// EncodeCommand serializes a command, walking its arguments through the
// extension chain so embedded component references cross the boundary.
func (s *Serializer) EncodeCommand(cmd component.Command) ([]byte, error) {
	args, err := s.encodeValue(cmd.Args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", cmd.Kind, err)
	}
	kwargs, err := s.encodeValue(cmd.KWArgs)
	if err != nil {
		return nil, fmt.Errorf("encode %s kwargs: %w", cmd.Kind, err)
	}
	wire := map[string]any{
		"kind": string(cmd.Kind),
		"id":   cmd.ID,
	}
	if cmd.Module != "" {
		wire["module"] = cmd.Module
	}
	if cmd.Class != "" {
		wire["class"] = cmd.Class
	}
	if cmd.Method != "" {
		wire["method"] = cmd.Method
	}
	if args != nil {
		wire["args"] = args
	}
	if kwargs != nil {
		wire["kwargs"] = kwargs
	}
	return json.Marshal(wire)
}

// DecodeCommand deserializes a command produced by EncodeCommand.
func (s *Serializer) DecodeCommand(data []byte) (component.Command, error) {
	var wire struct {
		Kind   string         `json:"kind"`
		Module string         `json:"module"`
		Class  string         `json:"class"`
		ID     string         `json:"id"`
		Method string         `json:"method"`
		Args   []any          `json:"args"`
		KWArgs map[string]any `json:"kwargs"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return component.Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch component.CommandKind(wire.Kind) {
	case component.CommandInstantiate, component.CommandInvoke:
	default:
		return component.Command{}, fmt.Errorf("%w: %q", ErrUnknownCommandKind, wire.Kind)
	}
	cmd := component.Command{
		Kind:   component.CommandKind(wire.Kind),
		Module: wire.Module,
		Class:  wire.Class,
		ID:     wire.ID,
		Method: wire.Method,
	}
	if wire.Args != nil {
		cmd.Args = s.decodeValue(wire.Args).([]any)
	}
	if wire.KWArgs != nil {
		cmd.KWArgs = s.decodeValue(wire.KWArgs).(map[string]any)
	}
	return cmd, nil
}

// encodeValue walks a value, replacing extension matches with envelopes.
func (s *Serializer) encodeValue(value any) (any, error) {
	s.mu.RLock()
	extensions := s.extensions
	s.mu.RUnlock()

	for _, ext := range extensions {
		if ext.Match(value) {
			data, err := ext.Encode(value)
			if err != nil {
				return nil, fmt.Errorf("extension %s: %w", ext.Name(), err)
			}
			return map[string]any{extKey: ext.Name(), "data": data}, nil
		}
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			walked, err := s.encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = walked
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			walked, err := s.encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = walked
		}
		return out, nil
	case event.Event:
		// Event records can carry components in their payload fields
		newValue, err := s.encodeValue(v.NewValue)
		if err != nil {
			return nil, err
		}
		var objects any
		if v.Objects != nil {
			objects, err = s.encodeValue(v.Objects)
			if err != nil {
				return nil, err
			}
		}
		var info any
		if v.Info != nil {
			info, err = s.encodeValue(v.Info)
			if err != nil {
				return nil, err
			}
		}
		out := map[string]any{"type": v.Type}
		if v.Mutation != "" {
			out["mutation"] = v.Mutation
			out["index"] = v.Index
		}
		if newValue != nil {
			out["new_value"] = newValue
		}
		if objects != nil {
			out["objects"] = objects
		}
		if info != nil {
			out["info"] = info
		}
		return out, nil
	default:
		return value, nil
	}
}

// decodeValue walks a decoded JSON value, resolving envelopes.
func (s *Serializer) decodeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if name, ok := v[extKey].(string); ok {
			if ext := s.extensionByName(name); ext != nil {
				decoded, err := ext.Decode(v["data"])
				if err == nil {
					return decoded
				}
				// fall through to the raw envelope
			}
			return v
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = s.decodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.decodeValue(item)
		}
		return out
	default:
		return value
	}
}

func (s *Serializer) extensionByName(name string) Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ext := range s.extensions {
		if ext.Name() == name {
			return ext
		}
	}
	return nil
}
