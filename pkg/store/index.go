package store

import (
	"slices"
	"sync"

	slerrors "github.com/vango-dev/statelift/internal/errors"
	"github.com/vango-dev/statelift/pkg/proxy"
)

// Callbacks are what the index invokes for a registered consumer.
type Callbacks struct {
	// Invalidate runs when a dependency of the consumer changed.
	Invalidate func()

	// Revoke drops the consumer's cached view of target so its next read
	// returns a new identity.
	Revoke func(target *proxy.Node)
}

// depSet is the set of consumers that read one (node, key) pair, or
// enumerated one node when keys is set. Each member maps to the value it
// last observed.
type depSet struct {
	target  *proxy.Node
	key     string
	keys    bool
	members map[uint64]any
}

type registration struct {
	id   uint64
	cb   Callbacks
	sets map[*depSet]struct{}
}

// notice is one consumer to notify about a change of target.
type notice struct {
	reg    *registration
	target *proxy.Node
}

// index maps (node, key) pairs to the consumers that read them.
type index struct {
	mu      sync.Mutex
	props   map[*proxy.Node]map[string]*depSet
	keys    map[*proxy.Node]*depSet
	members map[uint64]*registration
	sets    int
}

func newIndex() *index {
	return &index{
		props:   make(map[*proxy.Node]map[string]*depSet),
		keys:    make(map[*proxy.Node]*depSet),
		members: make(map[uint64]*registration),
	}
}

// register makes id known to the index. The returned function removes it
// from every set it joined.
func (ix *index) register(id uint64, cb Callbacks) func() {
	ix.mu.Lock()
	ix.members[id] = &registration{id: id, cb: cb, sets: make(map[*depSet]struct{})}
	ix.mu.Unlock()
	return func() { ix.unregister(id) }
}

func (ix *index) unregister(id uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	reg, ok := ix.members[id]
	if !ok {
		return
	}
	delete(ix.members, id)
	for set := range reg.sets {
		delete(set.members, id)
		if len(set.members) == 0 {
			ix.prune(set)
		}
	}
}

func (ix *index) prune(set *depSet) {
	ix.sets--
	if set.keys {
		delete(ix.keys, set.target)
		return
	}
	byKey := ix.props[set.target]
	delete(byKey, set.key)
	if len(byKey) == 0 {
		delete(ix.props, set.target)
	}
}

// recordRead adds id to the set of (target, key) with value as the last
// observed value. Unknown ids are ignored.
func (ix *index) recordRead(id uint64, target *proxy.Node, key string, value any) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	reg, ok := ix.members[id]
	if !ok {
		return
	}
	byKey, ok := ix.props[target]
	if !ok {
		byKey = make(map[string]*depSet)
		ix.props[target] = byKey
	}
	set, ok := byKey[key]
	if !ok {
		set = &depSet{target: target, key: key, members: make(map[uint64]any)}
		byKey[key] = set
		ix.sets++
	}
	set.members[id] = value
	reg.sets[set] = struct{}{}
}

// recordKeys adds id to the enumeration set of target.
func (ix *index) recordKeys(id uint64, target *proxy.Node) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	reg, ok := ix.members[id]
	if !ok {
		return
	}
	set, ok := ix.keys[target]
	if !ok {
		set = &depSet{target: target, keys: true, members: make(map[uint64]any)}
		ix.keys[target] = set
		ix.sets++
	}
	set.members[id] = nil
	reg.sets[set] = struct{}{}
}

// affectedBySet returns the readers of (target, key) whose last observed
// value is not identical to value, and how many were skipped.
func (ix *index) affectedBySet(target *proxy.Node, key string, value any) ([]notice, int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	set := ix.props[target][key]
	if set == nil {
		return nil, 0
	}
	var out []notice
	suppressed := 0
	for id, last := range set.members {
		if proxy.Identical(last, value) {
			suppressed++
			continue
		}
		out = append(out, notice{reg: ix.lookup(id, set), target: target})
	}
	return sortNotices(out), suppressed
}

// affectedByDelete returns every reader of (target, key).
func (ix *index) affectedByDelete(target *proxy.Node, key string) []notice {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return sortNotices(ix.all(ix.props[target][key], nil))
}

// affectedByKeys returns every consumer that enumerated target.
func (ix *index) affectedByKeys(target *proxy.Node) []notice {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return sortNotices(ix.all(ix.keys[target], nil))
}

// affectedByArray rechecks every watched key of target against its current
// raw value after a compound array operation. Enumerators are included when
// the length changed.
func (ix *index) affectedByArray(target *proxy.Node, oldLen int) ([]notice, int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[uint64]struct{})
	var out []notice
	suppressed := 0
	for key, set := range ix.props[target] {
		current, _ := target.Peek(key)
		for id, last := range set.members {
			if proxy.Identical(last, current) {
				suppressed++
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, notice{reg: ix.lookup(id, set), target: target})
		}
	}
	if target.Len() != oldLen {
		out = append(out, ix.all(ix.keys[target], seen)...)
	}
	return sortNotices(out), suppressed
}

// all returns a notice for every member of set not in skip. Callers hold mu.
func (ix *index) all(set *depSet, skip map[uint64]struct{}) []notice {
	if set == nil {
		return nil
	}
	out := make([]notice, 0, len(set.members))
	for id := range set.members {
		if _, ok := skip[id]; ok {
			continue
		}
		out = append(out, notice{reg: ix.lookup(id, set), target: set.target})
	}
	return out
}

// lookup returns the registration of a set member. A member without one
// means unregister missed a set. Callers hold mu.
func (ix *index) lookup(id uint64, set *depSet) *registration {
	reg, ok := ix.members[id]
	if !ok {
		panic(slerrors.New("SL100").WithDetailf("consumer %d in set of key %q", id, set.key))
	}
	return reg
}

// stats returns the number of registered consumers and live sets.
func (ix *index) stats() (consumers, sets int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.members), ix.sets
}

// dependencies returns how many sets id belongs to.
func (ix *index) dependencies(id uint64) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if reg, ok := ix.members[id]; ok {
		return len(reg.sets)
	}
	return 0
}

func sortNotices(out []notice) []notice {
	slices.SortFunc(out, func(a, b notice) int {
		switch {
		case a.reg.id < b.reg.id:
			return -1
		case a.reg.id > b.reg.id:
			return 1
		}
		return 0
	})
	return out
}
