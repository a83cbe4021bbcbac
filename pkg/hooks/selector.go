package hooks

import (
	"sync"

	"github.com/vango-dev/statelift/pkg/proxy"
	"github.com/vango-dev/statelift/pkg/store"
)

// Selected is a handle narrowed to the result of a selector. The selector
// runs through the handle's view on every invalidation; subscribers are
// called only when its result changed.
type Selected[R any] struct {
	*Handle

	selector func(*proxy.View) R

	mu    sync.Mutex
	value R
	equal func(a, b R) bool
}

// UseSelector creates a handle over the store that state belongs to and
// runs selector once to record its dependencies.
//
// Example:
//
//	selected, _ := hooks.UseSelector(s.State(), func(v *proxy.View) bool {
//	    return v.Int("selected") == rowID
//	})
//	selected.Subscribe(func() { redraw(rowID, selected.Value()) })
func UseSelector[R any](state any, selector func(*proxy.View) R, opts ...Option) (*Selected[R], error) {
	s, err := store.From(state)
	if err != nil {
		return nil, err
	}
	return newSelected(s, selector, applyOptions(opts)), nil
}

func newSelected[R any](s *store.Store, selector func(*proxy.View) R, cfg Config) *Selected[R] {
	sel := &Selected[R]{
		Handle:   newHandle(s, cfg),
		selector: selector,
		equal:    identical[R],
	}
	sel.filter = sel.recompute
	sel.revive = sel.refresh
	sel.refresh()
	return sel
}

// WithEqual returns the selection configured with a custom equality
// function for selector results.
func (s *Selected[R]) WithEqual(fn func(a, b R) bool) *Selected[R] {
	s.mu.Lock()
	s.equal = fn
	s.mu.Unlock()
	return s
}

// Value returns the latest selector result.
func (s *Selected[R]) Value() R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// refresh reruns the selector without comparing.
func (s *Selected[R]) refresh() {
	next := s.selector(s.State())
	s.mu.Lock()
	s.value = next
	s.mu.Unlock()
}

// recompute reruns the selector and reports whether the result changed.
func (s *Selected[R]) recompute() bool {
	next := s.selector(s.State())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.equal(s.value, next) {
		return false
	}
	s.value = next
	return true
}

// identical compares selector results. Views compare by identity, so a
// nested object whose content changed counts as a new result.
func identical[R any](a, b R) bool {
	av, aok := any(a).(*proxy.View)
	bv, bok := any(b).(*proxy.View)
	if aok || bok {
		return av == bv
	}
	return proxy.Identical(a, b)
}
