package proxy

import (
	"reflect"
	"sort"
	"strconv"
	"sync"
)

// LengthKey is the pseudo-key under which an array exposes its length.
const LengthKey = "length"

// Kind distinguishes object nodes from array nodes.
type Kind uint8

const (
	KindObject Kind = iota + 1
	KindArray
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Getter is a computed property. It is evaluated on every read with self
// bound to the view the read went through.
type Getter func(self *View) any

// Method is an action stored in the state graph, invoked through View.Call.
type Method func(self *View, args ...any) any

// Builder constructs the fields of a self-referencing root. The self view is
// live: methods and getters closing over it observe the populated state.
type Builder func(self *View) map[string]any

// Node is one raw object or array of a state graph.
//
// The mutex guards raw access only; it is never held while hooks, getters or
// methods run.
type Node struct {
	mu    sync.RWMutex
	kind  Kind
	keys  []string
	props map[string]any
	items []any
}

// NewObject returns an empty object node.
func NewObject() *Node {
	return &Node{kind: KindObject, props: make(map[string]any)}
}

// NewArray returns an array node holding the ingested items.
func NewArray(items ...any) *Node {
	n := &Node{kind: KindArray, items: make([]any, len(items))}
	for i, item := range items {
		n.items[i] = ingest(item)
	}
	return n
}

// Kind reports whether the node is an object or an array.
func (n *Node) Kind() Kind {
	return n.kind
}

// Len returns the number of keys of an object or items of an array.
func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind == KindArray {
		return len(n.items)
	}
	return len(n.keys)
}

// Peek returns the raw value stored under key without invoking any hook.
// Getters and methods are returned unevaluated.
func (n *Node) Peek(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lookupLocked(key)
}

// Keys returns a copy of the node's keys. Array keys are decimal indices.
func (n *Node) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind == KindArray {
		keys := make([]string, len(n.items))
		for i := range n.items {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	keys := make([]string, len(n.keys))
	copy(keys, n.keys)
	return keys
}

func (n *Node) lookupLocked(key string) (any, bool) {
	if n.kind == KindArray {
		if key == LengthKey {
			return len(n.items), true
		}
		i, ok := parseIndex(key)
		if !ok || i >= len(n.items) {
			return nil, false
		}
		return n.items[i], true
	}
	v, ok := n.props[key]
	return v, ok
}

// snapshot returns a copy of an array node's items.
func (n *Node) snapshot() []any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]any, len(n.items))
	copy(out, n.items)
	return out
}

// store writes an already ingested value. For arrays it returns the length
// before the write; for objects oldLen is -1.
func (n *Node) store(key string, value any) (created bool, oldLen int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.kind == KindArray {
		i, ok := parseIndex(key)
		if !ok {
			panic(&KeyError{Key: key, Kind: n.kind})
		}
		oldLen = len(n.items)
		if i >= oldLen {
			n.items = append(n.items, make([]any, i+1-oldLen)...)
			created = true
		}
		n.items[i] = value
		return created, oldLen
	}

	if _, exists := n.props[key]; !exists {
		n.keys = append(n.keys, key)
		created = true
	}
	n.props[key] = value
	return created, -1
}

// resize sets an array's length, padding with nil or truncating.
func (n *Node) resize(length int) (oldLen int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	oldLen = len(n.items)
	switch {
	case length < oldLen:
		clear(n.items[length:])
		n.items = n.items[:length]
	case length > oldLen:
		n.items = append(n.items, make([]any, length-oldLen)...)
	}
	return oldLen
}

// remove deletes key. Array indices become nil holes; the length is kept.
func (n *Node) remove(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.kind == KindArray {
		if key == LengthKey {
			panic(&KeyError{Key: key, Kind: n.kind})
		}
		i, ok := parseIndex(key)
		if !ok || i >= len(n.items) {
			return false
		}
		n.items[i] = nil
		return true
	}

	if _, exists := n.props[key]; !exists {
		return false
	}
	delete(n.props, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return true
}

// populate fills an object node from builder output in sorted key order.
func (n *Node) populate(fields map[string]any) {
	keys := sortedKeys(fields)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range keys {
		if _, exists := n.props[k]; !exists {
			n.keys = append(n.keys, k)
		}
		n.props[k] = ingest(fields[k])
	}
}

func parseIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ingest converts Go containers into nodes. Views are unwrapped to the node
// they stand for; built-ins and scalars are stored as they are.
func ingest(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *View:
		return x.Node()
	case *Node, Getter, Method:
		return x
	case func(*View) any:
		return Getter(x)
	case func(*View, ...any) any:
		return Method(x)
	case map[string]any:
		n := NewObject()
		n.populate(x)
		return n
	case []any:
		return NewArray(x...)
	}

	if _, ok := builtinName(v); ok {
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[iter.Key().String()] = iter.Value().Interface()
		}
		n := NewObject()
		n.populate(fields)
		return n
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return NewArray(items...)
	}
	return v
}
