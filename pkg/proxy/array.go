package proxy

import (
	"fmt"
	"sort"
	"strconv"
)

// Compound array operations. Each runs its writes through the normal write
// path with the node locked, so the hooks see a single OnArrayBatch call
// instead of one OnSet per touched index.

// Push appends values and returns the new length.
func (v *View) Push(values ...any) int {
	if v.inner != nil {
		v.checkLive()
		return v.inner.Push(values...)
	}
	var length int
	v.compound("push", func(l *Layer, n *Node) {
		length = n.Len()
		for _, value := range values {
			l.assign(n, strconv.Itoa(length), ingest(value))
			length++
		}
	})
	return length
}

// Pop removes and returns the last item, or nil for an empty array.
func (v *View) Pop() any {
	if v.inner != nil {
		v.checkLive()
		return v.layer.rewrap(v.inner.Pop())
	}
	var last any
	v.compound("pop", func(l *Layer, n *Node) {
		items := n.snapshot()
		if len(items) == 0 {
			return
		}
		last = items[len(items)-1]
		l.assign(n, LengthKey, len(items)-1)
	})
	return v.layer.resolve(last)
}

// Shift removes and returns the first item, or nil for an empty array.
func (v *View) Shift() any {
	if v.inner != nil {
		v.checkLive()
		return v.layer.rewrap(v.inner.Shift())
	}
	var first any
	v.compound("shift", func(l *Layer, n *Node) {
		items := n.snapshot()
		if len(items) == 0 {
			return
		}
		first = items[0]
		l.replace(n, items, items[1:])
	})
	return v.layer.resolve(first)
}

// Unshift prepends values and returns the new length.
func (v *View) Unshift(values ...any) int {
	if v.inner != nil {
		v.checkLive()
		return v.inner.Unshift(values...)
	}
	var length int
	v.compound("unshift", func(l *Layer, n *Node) {
		items := n.snapshot()
		next := make([]any, 0, len(items)+len(values))
		for _, value := range values {
			next = append(next, ingest(value))
		}
		next = append(next, items...)
		l.replace(n, items, next)
		length = len(next)
	})
	return length
}

// Splice removes deleteCount items at start, inserts items in their place
// and returns the removed items. A negative start counts from the end.
func (v *View) Splice(start, deleteCount int, items ...any) []any {
	if v.inner != nil {
		v.checkLive()
		removed := v.inner.Splice(start, deleteCount, items...)
		for i := range removed {
			removed[i] = v.layer.rewrap(removed[i])
		}
		return removed
	}
	var removed []any
	v.compound("splice", func(l *Layer, n *Node) {
		cur := n.snapshot()
		from := clampIndex(start, len(cur))
		count := min(max(deleteCount, 0), len(cur)-from)

		removed = make([]any, count)
		copy(removed, cur[from:from+count])

		next := make([]any, 0, len(cur)-count+len(items))
		next = append(next, cur[:from]...)
		for _, item := range items {
			next = append(next, ingest(item))
		}
		next = append(next, cur[from+count:]...)
		l.replace(n, cur, next)
	})
	for i := range removed {
		removed[i] = v.layer.resolve(removed[i])
	}
	return removed
}

// Sort orders the array in place with a stable sort. less receives the items
// as they are read through this view.
func (v *View) Sort(less func(a, b any) bool) {
	if v.inner != nil {
		v.checkLive()
		v.inner.Sort(func(a, b any) bool {
			return less(v.layer.rewrap(a), v.layer.rewrap(b))
		})
		return
	}
	v.compound("sort", func(l *Layer, n *Node) {
		cur := n.snapshot()
		next := make([]any, len(cur))
		copy(next, cur)
		sort.SliceStable(next, func(i, j int) bool {
			return less(l.resolve(next[i]), l.resolve(next[j]))
		})
		l.replace(n, cur, next)
	})
}

// Reverse reverses the array in place.
func (v *View) Reverse() {
	if v.inner != nil {
		v.checkLive()
		v.inner.Reverse()
		return
	}
	v.compound("reverse", func(l *Layer, n *Node) {
		cur := n.snapshot()
		next := make([]any, len(cur))
		for i, item := range cur {
			next[len(cur)-1-i] = item
		}
		l.replace(n, cur, next)
	})
}

// Fill sets every index in [start, end) to value. Negative bounds count from
// the end.
func (v *View) Fill(value any, start, end int) {
	if v.inner != nil {
		v.checkLive()
		v.inner.Fill(value, start, end)
		return
	}
	v.compound("fill", func(l *Layer, n *Node) {
		cur := n.snapshot()
		from, to := clampIndex(start, len(cur)), clampIndex(end, len(cur))
		next := make([]any, len(cur))
		copy(next, cur)
		stored := ingest(value)
		for i := from; i < to; i++ {
			next[i] = stored
		}
		l.replace(n, cur, next)
	})
}

// CopyWithin copies the items in [start, end) to the position target, within
// the current length.
func (v *View) CopyWithin(target, start, end int) {
	if v.inner != nil {
		v.checkLive()
		v.inner.CopyWithin(target, start, end)
		return
	}
	v.compound("copyWithin", func(l *Layer, n *Node) {
		cur := n.snapshot()
		to := clampIndex(target, len(cur))
		from, stop := clampIndex(start, len(cur)), clampIndex(end, len(cur))
		next := make([]any, len(cur))
		copy(next, cur)
		if from < stop {
			copy(next[to:], cur[from:stop])
		}
		l.replace(n, cur, next)
	})
}

func (v *View) checkLive() {
	if v.layer.revoked.Load() {
		panic(ErrRevoked)
	}
}

func (v *View) compound(method string, fn func(l *Layer, n *Node)) {
	l, n := v.layer, v.node
	v.checkLive()
	if n.kind != KindArray {
		panic(fmt.Errorf("%w: %s on %s", ErrNotArray, method, n.kind))
	}

	oldLen := n.Len()
	func() {
		l.lock(n)
		defer l.unlock(n)
		fn(l, n)
	}()

	if !l.building.Load() && l.hooks.OnArrayBatch != nil {
		l.hooks.OnArrayBatch(n, method, oldLen)
	}
}

// replace rewrites the indices that differ between cur and next and then
// the length when it changed.
func (l *Layer) replace(n *Node, cur, next []any) {
	for i, item := range next {
		if i < len(cur) && Identical(cur[i], item) {
			continue
		}
		l.assign(n, strconv.Itoa(i), item)
	}
	if len(next) != len(cur) {
		l.assign(n, LengthKey, len(next))
	}
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	return min(max(i, 0), length)
}
