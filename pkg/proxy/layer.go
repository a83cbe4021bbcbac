package proxy

import (
	"sync"
	"sync/atomic"
)

// Hooks are the callbacks a Layer invokes around operations on its views.
// Every field is optional. Targets are always raw nodes, never views, and
// values are raw too (nested objects are reported as *Node).
type Hooks struct {
	// OnGet runs for every property read and membership check, before the
	// value is returned.
	OnGet func(target *Node, key string, value any)

	// OnSet runs after a write. For arrays oldLen is the length before the
	// write; for objects it is -1.
	OnSet func(target *Node, key string, value any, created bool, oldLen int)

	// OnDelete runs after a key was removed. existed is false when the key
	// was not present.
	OnDelete func(target *Node, key string, existed bool)

	// OnOwnKeys runs whenever the keys of target are enumerated.
	OnOwnKeys func(target *Node)

	// OnArrayBatch runs once after a compound array operation (Push,
	// Splice, Sort, ...) in place of the writes it performed.
	OnArrayBatch func(target *Node, method string, oldLen int)

	// Enter runs before every read through a view stacked over another
	// layer; the returned function runs when the read completes.
	Enter func() (exit func())
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithStrict makes reads of built-in values fail with a *StrictError.
func WithStrict(strict bool) LayerOption {
	return func(l *Layer) {
		l.strict = strict
	}
}

// WithOwner attaches an opaque owner to the layer, retrievable from any of
// its views through View.Owner.
func WithOwner(owner any) LayerOption {
	return func(l *Layer) {
		l.owner = owner
	}
}

// Layer wraps raw nodes (or the views of another layer) into Views sharing
// one set of hooks. Exactly one View exists per (layer, node) pair until the
// node is evicted.
type Layer struct {
	hooks  Hooks
	strict bool
	owner  any

	mu    sync.Mutex
	cache map[*Node]*View

	// locked counts compound array operations in progress per node. Writes
	// and enumerations on a locked node do not reach the hooks.
	locked map[*Node]int

	revoked  atomic.Bool
	building atomic.Bool
}

// NewLayer creates a layer with the given hooks.
func NewLayer(hooks Hooks, opts ...LayerOption) *Layer {
	l := &Layer{
		hooks:  hooks,
		cache:  make(map[*Node]*View),
		locked: make(map[*Node]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Strict reports whether the layer rejects built-in values.
func (l *Layer) Strict() bool {
	return l.strict
}

// Owner returns the value given to WithOwner.
func (l *Layer) Owner() any {
	return l.owner
}

// Wrap returns the layer's view for v. v may be a *Node, a *View of another
// layer (the result is stacked over it) or a Go container that is ingested
// into a new node. Wrap returns nil for values that are not containers.
func (l *Layer) Wrap(v any) *View {
	switch x := v.(type) {
	case *View:
		if x.layer == l {
			return x
		}
		return l.viewFor(x.Node(), x)
	case *Node:
		return l.viewFor(x, nil)
	}
	if n, ok := ingest(v).(*Node); ok {
		return l.viewFor(n, nil)
	}
	return nil
}

// Build creates a self-referencing root. The builder receives a view bound
// to an empty shell; once it returns, the shell is populated with its
// fields. Hooks are bypassed while the builder runs.
func (l *Layer) Build(builder Builder) *View {
	shell := NewObject()
	self := l.viewFor(shell, nil)

	l.building.Store(true)
	fields := func() map[string]any {
		defer l.building.Store(false)
		return builder(self)
	}()

	shell.populate(fields)
	return self
}

// Evict drops the cached view of n, so the next read returns a new view
// identity for it.
func (l *Layer) Evict(n *Node) {
	l.mu.Lock()
	delete(l.cache, n)
	l.mu.Unlock()
}

// Revoke permanently disables every view of the layer.
func (l *Layer) Revoke() {
	l.revoked.Store(true)
	l.mu.Lock()
	clear(l.cache)
	l.mu.Unlock()
}

// Revoked reports whether Revoke was called.
func (l *Layer) Revoked() bool {
	return l.revoked.Load()
}

func (l *Layer) viewFor(n *Node, inner *View) *View {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache[n]; ok {
		return v
	}
	v := &View{layer: l, node: n, inner: inner}
	l.cache[n] = v
	return v
}

// rewrap converts a value returned by an inner layer into this layer.
func (l *Layer) rewrap(v any) any {
	if iv, ok := v.(*View); ok {
		return l.viewFor(iv.Node(), iv)
	}
	return v
}

// resolve converts a raw value of this layer's own nodes into a view.
func (l *Layer) resolve(v any) any {
	if n, ok := v.(*Node); ok {
		return l.viewFor(n, nil)
	}
	return v
}

func (l *Layer) enter() func() {
	if l.hooks.Enter == nil {
		return func() {}
	}
	return l.hooks.Enter()
}

func (l *Layer) quiet(n *Node) bool {
	if l.building.Load() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[n] > 0
}

func (l *Layer) lock(n *Node) {
	l.mu.Lock()
	l.locked[n]++
	l.mu.Unlock()
}

func (l *Layer) unlock(n *Node) {
	l.mu.Lock()
	if l.locked[n]--; l.locked[n] <= 0 {
		delete(l.locked, n)
	}
	l.mu.Unlock()
}

// assign writes an ingested value and reports it unless the node is quiet.
func (l *Layer) assign(n *Node, key string, value any) {
	if n.kind == KindArray && key == LengthKey {
		length, ok := value.(int)
		if !ok || length < 0 {
			panic(&KeyError{Key: key, Kind: n.kind})
		}
		oldLen := n.resize(length)
		if !l.quiet(n) && l.hooks.OnSet != nil {
			l.hooks.OnSet(n, key, length, false, oldLen)
		}
		return
	}

	created, oldLen := n.store(key, value)
	if !l.quiet(n) && l.hooks.OnSet != nil {
		l.hooks.OnSet(n, key, value, created, oldLen)
	}
}
