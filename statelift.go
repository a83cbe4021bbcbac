// Package statelift provides the public API for statelift stores.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/statelift"
//
// Usage:
//
//	s, _ := statelift.New(map[string]any{"firstName": "Ada", "count": 0})
//	state := s.State()
//
//	name, _ := statelift.UseSelector(state, func(v *statelift.View) string {
//	    return v.String("firstName")
//	})
//	name.Subscribe(func() { fmt.Println("name:", name.Value()) })
//
//	state.Set("count", 1)          // name is not notified
//	state.Set("firstName", "Grace") // prints "name: Grace"
package statelift

import (
	"github.com/vango-dev/statelift/pkg/hooks"
	"github.com/vango-dev/statelift/pkg/proxy"
	"github.com/vango-dev/statelift/pkg/store"
)

// =============================================================================
// State values (re-export from pkg/proxy)
// =============================================================================

// View is a tracked wrapper over an object or array of a store.
type View = proxy.View

// Getter is a derived property evaluated on every read with the reading view
// as self. Reads it makes are tracked like direct reads.
//
// Example:
//
//	s, _ := statelift.New(map[string]any{
//	    "first": "Ada",
//	    "last":  "Lovelace",
//	    "full": statelift.Getter(func(self *statelift.View) any {
//	        return self.String("first") + " " + self.String("last")
//	    }),
//	})
type Getter = proxy.Getter

// Method is a function stored in the state, invoked through View.Call.
type Method = proxy.Method

// Builder creates a root whose getters and methods close over the root
// itself. Pass it to New.
type Builder = proxy.Builder

// Node is the raw storage behind views.
type Node = proxy.Node

// Plain returns an untracked deep copy of a state value.
var Plain = proxy.Plain

// Unwrap returns the raw node behind a view.
var Unwrap = proxy.Unwrap

// Identical reports whether two values are the same by identity.
var Identical = proxy.Identical

// =============================================================================
// Stores (re-export from pkg/store)
// =============================================================================

// Store is a reactive state container.
type Store = store.Store

// Consumer is a subscriber of a store with its own tracked view.
type Consumer = store.Consumer

// StoreOption configures a Store.
type StoreOption = store.Option

// Event is an observer notification of a store.
type Event = store.Event

// Stats is a snapshot of a store's counters.
type Stats = store.Stats

// New creates a store from a map, a Builder or a Builder-shaped func.
var New = store.New

// Of returns the store a state value belongs to.
var Of = store.Of

// Batch runs fn as a single batch of the store state belongs to.
// Consumers are notified once, after the outermost batch.
//
// Example:
//
//	statelift.Batch(state, func() {
//	    state.Set("firstName", "John")
//	    state.Set("lastName", "Doe")
//	})
var Batch = store.Batch

// BatchValue is Batch for functions returning a value.
func BatchValue[T any](state any, fn func() T) (T, error) {
	return store.BatchValue(state, fn)
}

// CreateConsumer creates a consumer of the store state belongs to.
var CreateConsumer = store.CreateConsumer

// Store options
var (
	WithName     = store.WithName
	WithStrict   = store.WithStrict
	WithMaxFlush = store.WithMaxFlush
	WithLogger   = store.WithLogger
	WithRegistry = store.WithRegistry
	WithTracer   = store.WithTracer
)

// Errors
var (
	ErrRevoked       = store.ErrRevoked
	ErrNotStore      = store.ErrNotStore
	ErrInvalidState  = store.ErrInvalidState
	ErrFlushOverflow = store.ErrFlushOverflow
)

// =============================================================================
// Reactive reads (re-export from pkg/hooks)
// =============================================================================

// Handle owns a consumer and fans its invalidations out to subscribers.
type Handle = hooks.Handle

// Selected is a handle narrowed to the result of a selector.
type Selected[R any] = hooks.Selected[R]

// Bound is a store bound to default handle options.
type Bound = hooks.Bound

// Version is a handle snapshot token.
type Version = hooks.Version

// HandleOption configures a Handle.
type HandleOption = hooks.Option

// Use creates a handle over the store state belongs to.
var Use = hooks.Use

// UseSelector creates a handle whose subscribers run only when the
// selector's result changes.
func UseSelector[R any](state any, selector func(*View) R, opts ...HandleOption) (*Selected[R], error) {
	return hooks.UseSelector(state, selector, opts...)
}

// CreateUseStore binds a store to default handle options.
var CreateUseStore = hooks.CreateUseStore

// SelectFrom is UseSelector for a bound store.
func SelectFrom[R any](b *Bound, selector func(*View) R, opts ...HandleOption) *Selected[R] {
	return hooks.SelectFrom(b, selector, opts...)
}

// Handle options
var (
	WithDestroyDelay = hooks.WithDestroyDelay
	WithLabel        = hooks.WithLabel
	WithHandleLogger = hooks.WithLogger
)
