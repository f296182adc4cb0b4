package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tengqur/flexx/event"
)

// ActionFunc is the real implementation of an action, executed on the
// side holding canonical state.
type ActionFunc func(c *LocalComponent, args []any) error

// MethodFunc is a plain method, present only on the local side and never
// reachable over the wire.
type MethodFunc func(c *LocalComponent, args []any) (any, error)

// InitFunc consumes the constructor arguments carried by INSTANTIATE when
// the real instance is created on the receiving side.
type InitFunc func(c *LocalComponent, args []any, kwargs map[string]any) error

// ReactionDef declares a reaction instantiated on the local side.
type ReactionDef struct {
	Types []string
	Fn    func(c *LocalComponent, ev event.Event)
}

// Declaration is a single authored component class. Pairing derives the
// local and proxy descriptor sets from it.
type Declaration struct {
	// Module and Name identify the class across the session boundary
	Module string
	Name   string

	// Properties are present identically on both sides
	Properties []event.PropertyDef

	// Actions run for real on the local side; the proxy side gets a
	// forwarding stub with the same name
	Actions map[string]ActionFunc

	// Reactions exist only on the local side
	Reactions []ReactionDef

	// Methods exist only on the local side
	Methods map[string]MethodFunc

	// Init consumes constructor arguments on the local side
	Init InitFunc
}

// LocalSpec is the immutable descriptor set for the local side of a
// paired class.
type LocalSpec struct {
	Module     string
	Name       string
	Properties []event.PropertyDef
	Actions    map[string]ActionFunc
	Reactions  []ReactionDef
	Methods    map[string]MethodFunc
	Init       InitFunc
}

// ProxySpec is the immutable descriptor set for the proxy side of a
// paired class: properties plus forwarding action stubs, nothing else.
type ProxySpec struct {
	Module     string
	Name       string
	Properties []event.PropertyDef
	Actions    []string
}

// Pair derives the two descriptor sets from a declaration. This is a
// declaration-time schema derivation; the runtime behavior of the two
// sides is defined entirely by LocalComponent and ProxyComponent.
func Pair(d Declaration) (LocalSpec, ProxySpec) {
	local := LocalSpec{
		Module:     d.Module,
		Name:       d.Name,
		Properties: d.Properties,
		Actions:    d.Actions,
		Reactions:  d.Reactions,
		Methods:    d.Methods,
		Init:       d.Init,
	}

	stubs := make([]string, 0, len(d.Actions))
	for name := range d.Actions {
		stubs = append(stubs, name)
	}
	sort.Strings(stubs)

	proxy := ProxySpec{
		Module:     d.Module,
		Name:       d.Name,
		Properties: d.Properties,
		Actions:    stubs,
	}
	return local, proxy
}

// Role defines which side of a paired class a runtime instantiates when
// an INSTANTIATE command arrives. A class hosted by this runtime yields a
// LocalComponent; a class hosted by the peer yields a ProxyComponent.
type Role int

const (
	// RoleLocal means the real instance lives in this runtime
	RoleLocal Role = iota

	// RoleProxy means this runtime holds a stand-in
	RoleProxy
)

// String returns the string representation of Role.
func (r Role) String() string {
	switch r {
	case RoleLocal:
		return "local"
	case RoleProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// pairedClass is a registered declaration with its derived descriptors.
type pairedClass struct {
	role  Role
	local LocalSpec
	proxy ProxySpec
}

// Registry holds the paired classes known to one runtime. It is an
// explicit object owned by the application context, initialized on
// startup and cleared on shutdown.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*pairedClass
}

// NewRegistry creates an empty class registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*pairedClass)}
}

// Register adds a declaration with the role this runtime plays for it.
func (r *Registry) Register(d Declaration, role Role) error {
	if d.Name == "" {
		return fmt.Errorf("declaration has no name")
	}
	key := classKey(d.Module, d.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[key]; exists {
		return fmt.Errorf("%w: %s", ErrClassRegistered, key)
	}
	local, proxy := Pair(d)
	r.classes[key] = &pairedClass{role: role, local: local, proxy: proxy}
	return nil
}

// Role returns the role this runtime plays for a class.
func (r *Registry) Role(module, name string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.classes[classKey(module, name)]
	if !ok {
		return 0, false
	}
	return pc.role, true
}

// LookupLocal returns the local descriptor set for a class.
func (r *Registry) LookupLocal(module, name string) (LocalSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.classes[classKey(module, name)]
	if !ok {
		return LocalSpec{}, false
	}
	return pc.local, true
}

// LookupProxy returns the proxy descriptor set for a class.
func (r *Registry) LookupProxy(module, name string) (ProxySpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.classes[classKey(module, name)]
	if !ok {
		return ProxySpec{}, false
	}
	return pc.proxy, true
}

// Classes returns the sorted keys of all registered classes.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.classes))
	for key := range r.classes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all registered classes.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]*pairedClass)
}

func classKey(module, name string) string {
	if module == "" {
		return name
	}
	return module + "." + name
}
