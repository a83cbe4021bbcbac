package store

import (
	"sync/atomic"

	"github.com/vango-dev/statelift/pkg/proxy"
)

// Consumer is a subscriber of a store. Reads made through its view record
// dependencies for it; when any of them changes its invalidate callback
// runs once per batch.
type Consumer struct {
	id           uint64
	store        *Store
	layer        *proxy.Layer
	root         atomic.Pointer[proxy.View]
	onInvalidate func()
	unregister   func()
	destroyed    atomic.Bool
}

// NewConsumer creates a consumer of s. onInvalidate may be nil.
func (s *Store) NewConsumer(onInvalidate func()) *Consumer {
	c := &Consumer{
		id:           nextConsumerID(),
		store:        s,
		onInvalidate: onInvalidate,
	}
	c.layer = proxy.NewLayer(proxy.Hooks{
		Enter: func() func() {
			return s.enterConsumer(c.id)
		},
	}, proxy.WithOwner(s))
	c.root.Store(c.layer.Wrap(s.state))
	c.unregister = s.index.register(c.id, Callbacks{
		Invalidate: c.invalidate,
		Revoke:     c.layer.Evict,
	})

	s.metrics.consumers.Inc()
	s.cfg.Logger.Debug("consumer created", "store", s.cfg.Name, "consumer", c.id)
	s.emit(Event{Kind: EventConsumer, Method: "created", Consumers: []uint64{c.id}})
	return c
}

// CreateConsumer creates a consumer of the store that state belongs to.
func CreateConsumer(state any, onInvalidate func()) (*Consumer, error) {
	s, ok := Of(state)
	if !ok {
		return nil, notStore(state)
	}
	return s.NewConsumer(onInvalidate), nil
}

// ID returns the consumer id, unique across stores.
func (c *Consumer) ID() uint64 {
	return c.id
}

// Store returns the store the consumer belongs to.
func (c *Consumer) Store() *Store {
	return c.store
}

// View returns the consumer's view of the root. The root's identity changes
// after a notification that concerned the root object itself, like nested
// views do for their own nodes.
func (c *Consumer) View() *proxy.View {
	if c.destroyed.Load() {
		return c.root.Load()
	}
	root := c.layer.Wrap(c.store.state)
	c.root.Store(root)
	return root
}

// Dependencies returns how many (node, key) pairs and enumerations the
// consumer currently depends on.
func (c *Consumer) Dependencies() int {
	return c.store.index.dependencies(c.id)
}

// Destroyed reports whether Destroy was called.
func (c *Consumer) Destroyed() bool {
	return c.destroyed.Load()
}

// Destroy revokes the consumer's view and removes it from the index. Reads
// through its views fail with ErrRevoked afterwards. Destroy is idempotent.
func (c *Consumer) Destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	c.layer.Revoke()
	c.unregister()

	s := c.store
	s.metrics.consumers.Dec()
	s.cfg.Logger.Debug("consumer destroyed", "store", s.cfg.Name, "consumer", c.id)
	s.emit(Event{Kind: EventConsumer, Method: "destroyed", Consumers: []uint64{c.id}})
}

func (c *Consumer) invalidate() {
	if c.destroyed.Load() || c.onInvalidate == nil {
		return
	}
	c.onInvalidate()
}
