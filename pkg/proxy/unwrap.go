package proxy

import "reflect"

// Unwrap returns the raw node behind v when v is a view, looking through any
// number of stacked layers. Other values are returned unchanged.
func Unwrap(v any) any {
	if view, ok := v.(*View); ok {
		return view.Node()
	}
	return v
}

// Identical reports whether a and b are the same value by identity: nodes,
// maps, slices, channels, funcs and pointers by address, other comparable
// values by ==. Views are compared by the node they wrap.
func Identical(a, b any) bool {
	a, b = Unwrap(a), Unwrap(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}

	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

// Plain returns an untracked deep copy of v with nodes converted back to
// map[string]any and []any. Getters are evaluated; methods are kept as they
// are. A node reachable from itself is copied once and referenced as nil.
func Plain(v any) any {
	c := &copier{layer: NewLayer(Hooks{}), visiting: make(map[*Node]bool)}
	return c.copy(Unwrap(v))
}

type copier struct {
	layer    *Layer
	visiting map[*Node]bool
}

func (c *copier) copy(v any) any {
	n, ok := v.(*Node)
	if !ok {
		return v
	}
	if c.visiting[n] {
		return nil
	}
	c.visiting[n] = true
	defer delete(c.visiting, n)

	if n.kind == KindArray {
		items := n.snapshot()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = c.copy(item)
		}
		return out
	}

	out := make(map[string]any, n.Len())
	for _, key := range n.Keys() {
		raw, _ := n.Peek(key)
		if g, ok := raw.(Getter); ok {
			raw = Unwrap(g(c.layer.viewFor(n, nil)))
		}
		out[key] = c.copy(raw)
	}
	return out
}
