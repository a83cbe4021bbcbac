package hooks

import (
	"github.com/vango-dev/statelift/pkg/proxy"
	"github.com/vango-dev/statelift/pkg/store"
)

// Bound is a store bound to default handle options, so call sites do not
// have to pass the state around.
type Bound struct {
	store *store.Store
	opts  []Option
}

// CreateUseStore binds the store that state belongs to.
func CreateUseStore(state any, opts ...Option) (*Bound, error) {
	s, err := store.From(state)
	if err != nil {
		return nil, err
	}
	return &Bound{store: s, opts: opts}, nil
}

// Store returns the bound store.
func (b *Bound) Store() *store.Store {
	return b.store
}

// Use creates a handle over the bound store. opts are applied after the
// bound defaults.
func (b *Bound) Use(opts ...Option) *Handle {
	return newHandle(b.store, applyOptions(b.merge(opts)))
}

// SelectFrom creates a selection over the bound store.
func SelectFrom[R any](b *Bound, selector func(*proxy.View) R, opts ...Option) *Selected[R] {
	return newSelected(b.store, selector, applyOptions(b.merge(opts)))
}

func (b *Bound) merge(opts []Option) []Option {
	all := make([]Option, 0, len(b.opts)+len(opts))
	all = append(all, b.opts...)
	return append(all, opts...)
}
