package store

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	slerrors "github.com/vango-dev/statelift/internal/errors"
	"github.com/vango-dev/statelift/pkg/proxy"
)

// Store owns a state graph and the index of which consumer read what.
//
// The root view returned by State is untracked: reads through it record
// nothing, writes through it notify the consumers that depend on what
// changed. Consumers read through their own views (see NewConsumer).
type Store struct {
	cfg   Config
	layer *proxy.Layer
	state *proxy.View
	index *index

	// contexts maps goroutine ids to *trackingContext.
	contexts sync.Map

	metrics   *metrics
	observers observers

	notified   atomic.Uint64
	suppressed atomic.Uint64
	flushes    atomic.Uint64
	overflows  atomic.Uint64
}

// New creates a store. initial is a string-keyed map (or any value the proxy
// package ingests into an object or array), a *proxy.Node, or a builder
// receiving the root view before it is populated:
//
//	s, err := store.New(func(self *proxy.View) map[string]any {
//	    return map[string]any{
//	        "count": 0,
//	        "inc": proxy.Method(func(_ *proxy.View, _ ...any) any {
//	            self.Set("count", self.Int("count")+1)
//	            return nil
//	        }),
//	    }
//	})
func New(initial any, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	s := &Store{cfg: cfg, index: newIndex()}
	s.metrics = newMetrics(cfg)
	s.layer = proxy.NewLayer(proxy.Hooks{
		OnGet:        s.handleGet,
		OnSet:        s.handleSet,
		OnDelete:     s.handleDelete,
		OnOwnKeys:    s.handleOwnKeys,
		OnArrayBatch: s.handleArrayBatch,
	}, proxy.WithOwner(s), proxy.WithStrict(cfg.Strict))

	switch init := initial.(type) {
	case proxy.Builder:
		s.state = s.layer.Build(init)
	case func(*proxy.View) map[string]any:
		s.state = s.layer.Build(init)
	case *proxy.View:
		s.state = s.layer.Wrap(init.Node())
	default:
		s.state = s.layer.Wrap(initial)
	}
	if s.state == nil {
		return nil, slerrors.New("SL003").
			WithDetailf("cannot use %T as store state", initial).
			Wrap(ErrInvalidState)
	}

	cfg.Logger.Debug("store created", "store", cfg.Name, "strict", cfg.Strict)
	return s, nil
}

// State returns the untracked root view.
func (s *Store) State() *proxy.View {
	return s.state
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.cfg.Name
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.cfg.Logger
}

// Of returns the store that state belongs to. state may be the root view,
// any view read from it, or any view of one of its consumers.
func Of(state any) (*Store, bool) {
	v, ok := state.(*proxy.View)
	if !ok || v == nil {
		return nil, false
	}
	s, ok := v.Owner().(*Store)
	return s, ok
}

// From is Of returning an error for values that are not store states.
func From(state any) (*Store, error) {
	if s, ok := Of(state); ok {
		return s, nil
	}
	return nil, notStore(state)
}

// Observe registers fn to receive the store's events. Events are delivered
// synchronously on the goroutine that caused them.
func (s *Store) Observe(fn func(Event)) (unsubscribe func()) {
	return s.observers.add(fn)
}

// Stats is a snapshot of a store's counters.
type Stats struct {
	Store          string `json:"store"`
	Consumers      int    `json:"consumers"`
	DependencySets int    `json:"dependencySets"`
	Notifications  uint64 `json:"notifications"`
	Suppressed     uint64 `json:"suppressed"`
	Flushes        uint64 `json:"flushes"`
	Overflows      uint64 `json:"overflows"`
}

// Stats returns the store's current counters.
func (s *Store) Stats() Stats {
	consumers, sets := s.index.stats()
	return Stats{
		Store:          s.cfg.Name,
		Consumers:      consumers,
		DependencySets: sets,
		Notifications:  s.notified.Load(),
		Suppressed:     s.suppressed.Load(),
		Flushes:        s.flushes.Load(),
		Overflows:      s.overflows.Load(),
	}
}

func (s *Store) handleGet(target *proxy.Node, key string, value any) {
	if id := s.currentConsumer(); id != 0 {
		s.index.recordRead(id, target, key, value)
	}
}

func (s *Store) handleOwnKeys(target *proxy.Node) {
	if id := s.currentConsumer(); id != 0 {
		s.index.recordKeys(id, target)
	}
}

func (s *Store) handleSet(target *proxy.Node, key string, value any, created bool, oldLen int) {
	s.batch(func() {
		notices, suppressed := s.index.affectedBySet(target, key, value)

		if target.Kind() == proxy.KindArray {
			newLen := target.Len()
			switch {
			case key == proxy.LengthKey:
				for i := newLen; i < oldLen; i++ {
					notices = append(notices, s.index.affectedByDelete(target, strconv.Itoa(i))...)
				}
			case newLen != oldLen:
				grown, skipped := s.index.affectedBySet(target, proxy.LengthKey, newLen)
				notices = append(notices, grown...)
				suppressed += skipped
			}
			if newLen != oldLen {
				notices = append(notices, s.index.affectedByKeys(target)...)
			}
		} else if created {
			notices = append(notices, s.index.affectedByKeys(target)...)
		}

		s.dispatch(notices, suppressed)
		s.emitWrite(EventSet, key, "", notices, suppressed)
	})
}

func (s *Store) handleDelete(target *proxy.Node, key string, existed bool) {
	s.batch(func() {
		notices := s.index.affectedByDelete(target, key)
		if existed && target.Kind() == proxy.KindObject {
			notices = append(notices, s.index.affectedByKeys(target)...)
		}
		s.dispatch(notices, 0)
		s.emitWrite(EventDelete, key, "", notices, 0)
	})
}

func (s *Store) handleArrayBatch(target *proxy.Node, method string, oldLen int) {
	s.batch(func() {
		notices, suppressed := s.index.affectedByArray(target, oldLen)
		s.dispatch(notices, suppressed)
		s.emitWrite(EventArray, "", method, notices, suppressed)
	})
}

// dispatch revokes the consumers' cached views of the changed nodes and
// schedules them. Callers run inside a batch.
func (s *Store) dispatch(notices []notice, suppressed int) {
	if suppressed > 0 {
		s.suppressed.Add(uint64(suppressed))
		s.metrics.suppressed.Add(float64(suppressed))
	}
	if len(notices) == 0 {
		return
	}
	_, tc := s.tracking()
	for _, n := range notices {
		if n.reg.cb.Revoke != nil {
			n.reg.cb.Revoke(n.target)
		}
		if _, ok := tc.queued[n.reg.id]; ok {
			continue
		}
		tc.queued[n.reg.id] = struct{}{}
		tc.pending = append(tc.pending, n.reg)
	}
}

func (s *Store) emitWrite(kind EventKind, key, method string, notices []notice, suppressed int) {
	if !s.observers.active() {
		return
	}
	s.observers.emit(Event{
		Kind:       kind,
		Store:      s.cfg.Name,
		Key:        key,
		Method:     method,
		Consumers:  noticeIDs(notices),
		Suppressed: suppressed,
		Time:       time.Now(),
	})
}

func (s *Store) emit(ev Event) {
	if !s.observers.active() {
		return
	}
	ev.Store = s.cfg.Name
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.observers.emit(ev)
}

func noticeIDs(notices []notice) []uint64 {
	if len(notices) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(notices))
	seen := make(map[uint64]struct{}, len(notices))
	for _, n := range notices {
		if _, ok := seen[n.reg.id]; ok {
			continue
		}
		seen[n.reg.id] = struct{}{}
		ids = append(ids, n.reg.id)
	}
	return ids
}

// String implements fmt.Stringer.
func (s *Store) String() string {
	return fmt.Sprintf("store(%s)", s.cfg.Name)
}
