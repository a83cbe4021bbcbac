package proxy

import (
	"fmt"
	"strconv"
)

// View is a live, transparent wrapper over one node. Views are created by a
// Layer and are cached, so reading the same nested object twice returns the
// same *View.
//
// Accessors without an error result panic on misuse (revoked view, strict
// violation, invalid array key); Lookup is the error-returning read.
type View struct {
	layer *Layer

	// node is set for views created over raw nodes; inner is set for views
	// stacked over a view of another layer.
	node  *Node
	inner *View
}

// Layer returns the layer the view belongs to.
func (v *View) Layer() *Layer {
	return v.layer
}

// Owner returns the owner of the view's layer.
func (v *View) Owner() any {
	return v.layer.owner
}

// Node returns the raw node behind the view, looking through stacked layers.
func (v *View) Node() *Node {
	for v.inner != nil {
		v = v.inner
	}
	return v.node
}

// Kind returns the kind of the underlying node.
func (v *View) Kind() Kind {
	return v.Node().kind
}

// IsArray reports whether the view wraps an array.
func (v *View) IsArray() bool {
	return v.Kind() == KindArray
}

// Lookup reads key. Nested objects and arrays are returned as *View of the
// same layer; getters are evaluated with the view as self.
func (v *View) Lookup(key string) (any, error) {
	return v.lookup(key, v)
}

func (v *View) lookup(key string, recv *View) (any, error) {
	l := v.layer
	if l.revoked.Load() {
		return nil, ErrRevoked
	}

	if v.inner != nil {
		exit := l.enter()
		defer exit()
		value, err := v.inner.lookup(key, recv)
		if err != nil {
			return nil, err
		}
		return l.rewrap(value), nil
	}

	n := v.node
	value, _ := n.Peek(key)
	if g, ok := value.(Getter); ok {
		value = g(recv)
		if iv, ok := value.(*View); ok {
			value = iv.Node()
		}
	}

	if l.strict {
		if name, ok := builtinName(value); ok {
			return nil, &StrictError{Type: name, Key: key}
		}
	}

	if !l.building.Load() && l.hooks.OnGet != nil {
		l.hooks.OnGet(n, key, value)
	}
	return l.resolve(value), nil
}

// Get reads key and panics on error. See Lookup.
func (v *View) Get(key string) any {
	value, err := v.Lookup(key)
	if err != nil {
		panic(err)
	}
	return value
}

// Index reads the i-th item of an array.
func (v *View) Index(i int) any {
	return v.Get(strconv.Itoa(i))
}

// Object reads key and returns it as a view, or nil when the value is not an
// object or array.
func (v *View) Object(key string) *View {
	child, _ := v.Get(key).(*View)
	return child
}

// Int reads key as an int. Non-int values yield 0.
func (v *View) Int(key string) int {
	i, _ := v.Get(key).(int)
	return i
}

// String reads key as a string. Non-string values yield "".
func (v *View) String(key string) string {
	s, _ := v.Get(key).(string)
	return s
}

// Bool reads key as a bool.
func (v *View) Bool(key string) bool {
	b, _ := v.Get(key).(bool)
	return b
}

// Has reports whether key is present. The check is observed like a read of
// key.
func (v *View) Has(key string) bool {
	l := v.layer
	if l.revoked.Load() {
		panic(ErrRevoked)
	}

	if v.inner != nil {
		exit := l.enter()
		defer exit()
		return v.inner.Has(key)
	}

	value, ok := v.node.Peek(key)
	if !l.building.Load() && l.hooks.OnGet != nil {
		l.hooks.OnGet(v.node, key, value)
	}
	return ok
}

// Keys lists the keys of the node, reporting the enumeration to the hooks.
// Object keys keep insertion order; array keys are indices.
func (v *View) Keys() []string {
	l := v.layer
	if l.revoked.Load() {
		panic(ErrRevoked)
	}

	if v.inner != nil {
		exit := l.enter()
		defer exit()
		return v.inner.Keys()
	}

	if !l.quiet(v.node) && l.hooks.OnOwnKeys != nil {
		l.hooks.OnOwnKeys(v.node)
	}
	return v.node.Keys()
}

// Len returns the length of an array (observed as a read of "length") or the
// number of keys of an object (observed as an enumeration).
func (v *View) Len() int {
	if v.IsArray() {
		return v.Int(LengthKey)
	}
	return len(v.Keys())
}

// Range calls fn for every key and value until fn returns false.
func (v *View) Range(fn func(key string, value any) bool) {
	for _, key := range v.Keys() {
		if !fn(key, v.Get(key)) {
			return
		}
	}
}

// Spread returns a shallow copy of the view's entries, like an object
// spread. Nested values stay views.
func (v *View) Spread() map[string]any {
	out := make(map[string]any)
	v.Range(func(key string, value any) bool {
		out[key] = value
		return true
	})
	return out
}

// Items returns the items of an array as a slice; nested values stay views.
func (v *View) Items() []any {
	n := v.Len()
	items := make([]any, n)
	for i := range items {
		items[i] = v.Index(i)
	}
	return items
}

// Call invokes the Method stored under name with the view as self.
func (v *View) Call(name string, args ...any) (any, error) {
	value, err := v.Lookup(name)
	if err != nil {
		return nil, err
	}
	m, ok := value.(Method)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrNotCallable, name, value)
	}
	return m(v, args...), nil
}

// Set writes key. Containers are ingested into nodes and views are stored as
// the node they wrap. Writing "length" on an array resizes it.
func (v *View) Set(key string, value any) {
	l := v.layer
	if l.revoked.Load() {
		panic(ErrRevoked)
	}
	if v.inner != nil {
		v.inner.Set(key, value)
		return
	}
	l.assign(v.node, key, ingest(value))
}

// SetIndex writes the i-th item of an array.
func (v *View) SetIndex(i int, value any) {
	v.Set(strconv.Itoa(i), value)
}

// SetLength truncates or extends an array.
func (v *View) SetLength(length int) {
	v.Set(LengthKey, length)
}

// Define installs a getter, method or plain value under key. It reports to
// the hooks exactly like Set.
func (v *View) Define(key string, accessor any) {
	switch a := accessor.(type) {
	case func(*View) any:
		accessor = Getter(a)
	case func(*View, ...any) any:
		accessor = Method(a)
	}
	v.Set(key, accessor)
}

// Delete removes key. Deleting an array index leaves a nil hole.
func (v *View) Delete(key string) {
	l := v.layer
	if l.revoked.Load() {
		panic(ErrRevoked)
	}
	if v.inner != nil {
		v.inner.Delete(key)
		return
	}
	existed := v.node.remove(key)
	if !l.building.Load() && l.hooks.OnDelete != nil {
		l.hooks.OnDelete(v.node, key, existed)
	}
}
