package hooks

import (
	"sync"
	"time"

	"github.com/vango-dev/statelift/pkg/proxy"
	"github.com/vango-dev/statelift/pkg/store"
)

// Version is a snapshot token. A new *Version is issued each time the
// handle is invalidated; compare tokens by pointer.
type Version struct {
	n uint64
}

// N returns the sequence number of the version.
func (v *Version) N() uint64 {
	return v.n
}

// Handle owns one consumer of a store and fans its invalidations out to
// subscribers.
type Handle struct {
	cfg   Config
	store *store.Store

	mu       sync.Mutex
	consumer *store.Consumer
	version  *Version
	subs     map[uint64]func()
	nextSub  uint64
	timer    *time.Timer
	timerGen uint64
	closed   bool

	// filter, when set, decides whether an invalidation reaches the
	// subscribers. revive runs after a destroyed consumer was recreated.
	filter func() bool
	revive func()
}

// Use creates a handle over the store that state belongs to.
func Use(state any, opts ...Option) (*Handle, error) {
	s, err := store.From(state)
	if err != nil {
		return nil, err
	}
	return newHandle(s, applyOptions(opts)), nil
}

func newHandle(s *store.Store, cfg Config) *Handle {
	if cfg.Logger == nil {
		cfg.Logger = s.Logger()
	}
	h := &Handle{
		cfg:     cfg,
		store:   s,
		version: &Version{},
		subs:    make(map[uint64]func()),
	}
	h.consumer = s.NewConsumer(h.invalidate)
	return h
}

// State returns the tracked view of the store root. Reads through it make
// the handle depend on what was read.
func (h *Handle) State() *proxy.View {
	return h.current().View()
}

// Consumer returns the handle's current consumer.
func (h *Handle) Consumer() *store.Consumer {
	return h.current()
}

// Snapshot returns the current version token.
func (h *Handle) Snapshot() *Version {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// Subscribe registers cb to run after each invalidation that passes the
// handle's filter. It cancels a pending destroy and recreates the consumer
// if it was already destroyed. Subscribing to a closed handle is a no-op.
func (h *Handle) Subscribe(cb func()) (unsubscribe func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
		h.timerGen++
	}
	revived := false
	if h.consumer.Destroyed() {
		h.consumer = h.store.NewConsumer(h.invalidate)
		revived = true
	}
	h.nextSub++
	id := h.nextSub
	h.subs[id] = cb
	revive := h.revive
	h.mu.Unlock()

	if revived {
		h.cfg.Logger.Debug("handle consumer recreated", "label", h.cfg.Label, "store", h.store.Name())
		if revive != nil {
			revive()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(id) })
	}
}

func (h *Handle) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
	if len(h.subs) > 0 || h.closed {
		return
	}
	h.timerGen++
	gen := h.timerGen
	h.timer = time.AfterFunc(h.cfg.DestroyDelay, func() {
		h.destroyIfIdle(gen)
	})
}

func (h *Handle) destroyIfIdle(gen uint64) {
	h.mu.Lock()
	if gen != h.timerGen || len(h.subs) > 0 {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	c := h.consumer
	h.mu.Unlock()

	c.Destroy()
	h.cfg.Logger.Debug("handle consumer destroyed", "label", h.cfg.Label, "store", h.store.Name(), "consumer", c.ID())
}

// Close destroys the consumer immediately and drops every subscriber.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.timerGen++
	clear(h.subs)
	c := h.consumer
	h.mu.Unlock()

	c.Destroy()
}

func (h *Handle) current() *store.Consumer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consumer
}

func (h *Handle) invalidate() {
	if h.filter != nil && !h.filter() {
		return
	}

	h.mu.Lock()
	h.version = &Version{n: h.version.n + 1}
	subs := make([]func(), 0, len(h.subs))
	for _, cb := range h.subs {
		subs = append(subs, cb)
	}
	h.mu.Unlock()

	for _, cb := range subs {
		cb()
	}
}
