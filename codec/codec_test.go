package codec

import (
	"reflect"
	"testing"

	"github.com/tengqur/flexx/component"
	"github.com/tengqur/flexx/event"
)

// fakeComponent implements the Synced surface.
type fakeComponent struct {
	id       string
	sessions []string
}

func (c *fakeComponent) ID() string           { return c.id }
func (c *fakeComponent) SessionIDs() []string { return c.sessions }

// fakeResolver resolves components by "sessionID/componentID".
type fakeResolver struct {
	known map[string]any
}

func (r *fakeResolver) ComponentByID(sessionID, componentID string) (any, bool) {
	c, ok := r.known[sessionID+"/"+componentID]
	return c, ok
}

func newTestSerializer(resolver SessionResolver) *Serializer {
	s := NewSerializer()
	s.AddExtension(NewComponentExtension(resolver))
	return s
}

func TestSerializerPlainValues(t *testing.T) {
	s := newTestSerializer(nil)

	in := map[string]any{"a": float64(1), "b": []any{"x", "y"}, "c": nil}
	data, err := s.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := s.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("Expected %v, got %v", in, out)
	}
}

func TestSerializerDuplicateExtension(t *testing.T) {
	s := newTestSerializer(nil)
	err := s.AddExtension(NewComponentExtension(nil))
	if err == nil {
		t.Fatal("Duplicate extension name should be rejected")
	}
}

func TestComponentReferenceRoundTrip(t *testing.T) {
	t.Run("ResolvesToSameComponent", func(t *testing.T) {
		c := &fakeComponent{id: "c1", sessions: []string{"s1"}}
		resolver := &fakeResolver{known: map[string]any{"s1/c1": c}}
		s := newTestSerializer(resolver)

		data, err := s.Encode(map[string]any{"target": c})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		out, err := s.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		m := out.(map[string]any)
		if m["target"] != c {
			t.Errorf("Expected the reference to resolve back, got %v", m["target"])
		}
	})

	t.Run("MissingComponentDegradesToID", func(t *testing.T) {
		c := &fakeComponent{id: "c1", sessions: []string{"s1"}}
		s := newTestSerializer(&fakeResolver{known: map[string]any{}})

		data, _ := s.Encode(map[string]any{"target": c, "other": "ok"})
		out, err := s.Decode(data)
		if err != nil {
			t.Fatalf("Decode must not fail on a dangling reference: %v", err)
		}
		m := out.(map[string]any)
		if m["target"] != "c1" {
			t.Errorf("Expected the bare id sentinel, got %v", m["target"])
		}
		// The rest of the payload still decodes
		if m["other"] != "ok" {
			t.Errorf("Sibling field should survive, got %v", m["other"])
		}
	})

	t.Run("EncodeRequiresExactlyOneSession", func(t *testing.T) {
		for _, sessions := range [][]string{nil, {"s1", "s2"}} {
			c := &fakeComponent{id: "c1", sessions: sessions}
			s := newTestSerializer(nil)
			func() {
				defer func() {
					if recover() == nil {
						t.Errorf("Expected panic for %d sessions", len(sessions))
					}
				}()
				s.Encode(c)
			}()
		}
	})

	t.Run("MalformedReference", func(t *testing.T) {
		ext := NewComponentExtension(nil)
		out, err := ext.Decode("not-a-map")
		if err != nil {
			t.Fatalf("Decode must not fail: %v", err)
		}
		if out != UnknownComponent {
			t.Errorf("Expected %q, got %v", UnknownComponent, out)
		}
	})
}

func TestSerializerUnknownEnvelope(t *testing.T) {
	s := newTestSerializer(nil)

	out, err := s.Decode([]byte(`{"v": {"__ext__": "nobody.knows", "data": 1}, "w": 2}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m := out.(map[string]any)
	if m["w"] != float64(2) {
		t.Errorf("Sibling field should survive, got %v", m["w"])
	}
	if _, ok := m["v"].(map[string]any); !ok {
		t.Errorf("Unknown envelope should degrade to its raw form, got %T", m["v"])
	}
}

func TestCommandRoundTrip(t *testing.T) {
	t.Run("Invoke", func(t *testing.T) {
		s := newTestSerializer(nil)
		in := component.Command{
			Kind:   component.CommandInvoke,
			ID:     "c1",
			Method: "submit",
			Args:   []any{"form1", float64(2)},
		}
		data, err := s.EncodeCommand(in)
		if err != nil {
			t.Fatalf("EncodeCommand failed: %v", err)
		}
		out, err := s.DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand failed: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("Expected %+v, got %+v", in, out)
		}
	})

	t.Run("Instantiate", func(t *testing.T) {
		s := newTestSerializer(nil)
		in := component.Command{
			Kind:   component.CommandInstantiate,
			Module: "demo",
			Class:  "Counter",
			ID:     "c2",
			Args:   []any{float64(7)},
			KWArgs: map[string]any{"title": "x"},
		}
		data, _ := s.EncodeCommand(in)
		out, err := s.DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand failed: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("Expected %+v, got %+v", in, out)
		}
	})

	t.Run("EventArgSurvivesWire", func(t *testing.T) {
		s := newTestSerializer(nil)
		in := component.Command{
			Kind:   component.CommandInvoke,
			ID:     "c1",
			Method: component.MethodEmitFromOtherSide,
			Args: []any{event.Event{
				Type: "items", Mutation: event.MutationInsert,
				Objects: []any{"x"}, Index: 2,
			}},
		}
		data, _ := s.EncodeCommand(in)
		out, err := s.DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand failed: %v", err)
		}
		ev, err := component.EventFromArg(out.Args[0])
		if err != nil {
			t.Fatalf("EventFromArg failed: %v", err)
		}
		if ev.Type != "items" || ev.Mutation != "insert" || ev.Index != 2 {
			t.Errorf("Unexpected event after wire: %+v", ev)
		}
	})

	t.Run("ReferenceInsideArgs", func(t *testing.T) {
		c := &fakeComponent{id: "c9", sessions: []string{"s1"}}
		resolver := &fakeResolver{known: map[string]any{"s1/c9": c}}
		s := newTestSerializer(resolver)

		in := component.Command{
			Kind:   component.CommandInvoke,
			ID:     "c1",
			Method: "link",
			Args:   []any{c},
		}
		data, err := s.EncodeCommand(in)
		if err != nil {
			t.Fatalf("EncodeCommand failed: %v", err)
		}
		out, err := s.DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand failed: %v", err)
		}
		if out.Args[0] != c {
			t.Errorf("Expected reference to resolve, got %v", out.Args[0])
		}
	})

	t.Run("UnknownKindRejected", func(t *testing.T) {
		s := newTestSerializer(nil)
		if _, err := s.DecodeCommand([]byte(`{"kind": "DESTROY", "id": "c1"}`)); err == nil {
			t.Error("Unknown command kind should be rejected")
		}
	})
}
