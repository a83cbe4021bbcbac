package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	slerrors "github.com/vango-dev/statelift/internal/errors"
	"github.com/vango-dev/statelift/pkg/proxy"
)

// counter is an invalidate callback counting its calls.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newStore(t *testing.T, initial any, opts ...Option) *Store {
	t.Helper()
	s, err := New(initial, opts...)
	require.NoError(t, err)
	return s
}

func TestReadsAreTransparent(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "nested": map[string]any{"b": "x"}})
	c := s.NewConsumer(nil)

	assert.Equal(t, 1, c.View().Int("a"))
	assert.Equal(t, "x", c.View().Object("nested").String("b"))
	assert.Equal(t, map[string]any{"a": 1, "nested": map[string]any{"b": "x"}}, proxy.Plain(c.View()))
}

func TestOnlyReadersOfChangedKeyAreNotified(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "b": 2})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	_ = c.View().Int("a")

	s.State().Set("b", 3)
	assert.Equal(t, 0, calls.count())

	s.State().Set("a", 5)
	assert.Equal(t, 1, calls.count())
}

func TestWritingSameValueDoesNotNotify(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "obj": map[string]any{}})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	_ = c.View().Int("a")
	obj := c.View().Object("obj")
	require.NotNil(t, obj)

	s.State().Set("a", 1)
	s.State().Set("obj", s.State().Object("obj"))

	assert.Equal(t, 0, calls.count())
	assert.Equal(t, uint64(2), s.Stats().Suppressed)
}

func TestGetterDependenciesPropagate(t *testing.T) {
	s := newStore(t, map[string]any{
		"a": 5,
		"b": 5,
		"sum": proxy.Getter(func(self *proxy.View) any {
			return self.Int("a") + self.Int("b")
		}),
	})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.Equal(t, 10, c.View().Get("sum"))

	s.State().Set("a", 10)
	assert.Equal(t, 1, calls.count())
	assert.Equal(t, 15, c.View().Get("sum"))

	s.State().Set("b", 10)
	assert.Equal(t, 2, calls.count())
}

func TestDeleteNotifiesReaders(t *testing.T) {
	s := newStore(t, map[string]any{"x": 1, "y": 2})
	reader, lister := &counter{}, &counter{}
	c1 := s.NewConsumer(reader.inc)
	c2 := s.NewConsumer(lister.inc)

	_ = c1.View().Get("x")
	_ = c2.View().Keys()

	s.State().Delete("x")
	assert.Equal(t, 1, reader.count())
	assert.Equal(t, 1, lister.count())

	s.State().Delete("missing")
	assert.Equal(t, 1, lister.count(), "deleting an absent key leaves the keys unchanged")
}

func TestEnumerationTracksKeyChanges(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.Equal(t, []string{"a"}, c.View().Keys())

	s.State().Set("b", 2)
	assert.Equal(t, 1, calls.count())

	s.State().Set("b", 3)
	assert.Equal(t, 1, calls.count(), "enumeration alone does not depend on values")
}

func TestSpreadTracksKeysAndValues(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.Equal(t, map[string]any{"a": 1}, c.View().Spread())

	s.State().Set("a", 2)
	assert.Equal(t, 1, calls.count())
	assert.Equal(t, map[string]any{"a": 2}, c.View().Spread())

	s.State().Set("c", 3)
	assert.Equal(t, 2, calls.count())
}

func TestHasTracksMissingKeys(t *testing.T) {
	s := newStore(t, map[string]any{})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.False(t, c.View().Has("z"))

	s.State().Set("z", 0)
	assert.Equal(t, 1, calls.count())
	assert.True(t, c.View().Has("z"))
}

func TestTruncationNotifiesOnlyRemovedIndices(t *testing.T) {
	s := newStore(t, map[string]any{"arr": []any{1, 2, 3, 4, 5}})
	high, low := &counter{}, &counter{}
	c1 := s.NewConsumer(high.inc)
	c2 := s.NewConsumer(low.inc)

	assert.Equal(t, 4, c1.View().Object("arr").Index(3))
	assert.Equal(t, 2, c2.View().Object("arr").Index(1))

	s.State().Object("arr").SetLength(2)

	assert.Equal(t, 1, high.count())
	assert.Equal(t, 0, low.count())
	assert.Nil(t, c1.View().Object("arr").Index(3))
}

func TestExpansionNotifiesLengthReaders(t *testing.T) {
	s := newStore(t, map[string]any{"arr": []any{1}})
	length, keys := &counter{}, &counter{}
	c1 := s.NewConsumer(length.inc)
	c2 := s.NewConsumer(keys.inc)

	assert.Equal(t, 1, c1.View().Object("arr").Len())
	_ = c2.View().Object("arr").Keys()

	s.State().Object("arr").SetIndex(1, 2)

	assert.Equal(t, 1, length.count())
	assert.Equal(t, 1, keys.count())
	assert.Equal(t, 2, c1.View().Object("arr").Len())
}

func TestCompoundOperationNotifiesOnce(t *testing.T) {
	s := newStore(t, map[string]any{"list": []any{1, 2, 3}})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	var events []Event
	unsubscribe := s.Observe(func(ev Event) {
		if ev.Kind == EventArray {
			events = append(events, ev)
		}
	})
	defer unsubscribe()

	assert.Equal(t, []any{1, 2, 3}, c.View().Object("list").Items())

	s.State().Object("list").Splice(1, 1, "a", "b")
	assert.Equal(t, 1, calls.count())
	require.Len(t, events, 1)
	assert.Equal(t, "splice", events[0].Method)
	assert.Equal(t, []uint64{c.ID()}, events[0].Consumers)

	_ = c.View().Object("list").Items()
	s.State().Object("list").Reverse()
	assert.Equal(t, 2, calls.count())
	assert.Equal(t, []any{3, "b", "a", 1}, proxy.Plain(c.View().Object("list")))
}

func TestSortWithoutChangesIsSuppressed(t *testing.T) {
	s := newStore(t, map[string]any{"list": []any{1, 2, 3}})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	_ = c.View().Object("list").Items()
	s.State().Object("list").Sort(func(a, b any) bool { return a.(int) < b.(int) })

	assert.Equal(t, 0, calls.count())
	assert.Positive(t, s.Stats().Suppressed)
}

func TestListConsumerSeesPushAndPop(t *testing.T) {
	s := newStore(t, map[string]any{"todos": []any{}})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.Empty(t, c.View().Object("todos").Items())

	todos := s.State().Object("todos")
	todos.Push(map[string]any{"text": "write tests", "done": false})
	assert.Equal(t, 1, calls.count())

	items := c.View().Object("todos").Items()
	require.Len(t, items, 1)
	assert.Equal(t, "write tests", items[0].(*proxy.View).String("text"))

	todos.Pop()
	assert.Equal(t, 2, calls.count())
	assert.Empty(t, c.View().Object("todos").Items())
}

func TestNestedIdentityChangesAfterInvalidation(t *testing.T) {
	s := newStore(t, map[string]any{
		"changed":   map[string]any{"x": 1},
		"untouched": map[string]any{"y": 1},
	})
	c := s.NewConsumer(nil)

	changed := c.View().Object("changed")
	untouched := c.View().Object("untouched")
	_ = changed.Int("x")
	_ = untouched.Int("y")

	s.State().Object("changed").Set("x", 2)

	assert.NotSame(t, changed, c.View().Object("changed"))
	assert.Same(t, untouched, c.View().Object("untouched"))
	assert.Equal(t, 2, c.View().Object("changed").Int("x"))
}

func TestDestroyCleansUp(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "b": map[string]any{"c": 2}})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	_ = c.View().Int("a")
	_ = c.View().Object("b").Int("c")
	_ = c.View().Keys()
	assert.Equal(t, 4, c.Dependencies())

	stats := s.Stats()
	assert.Equal(t, 1, stats.Consumers)
	assert.Equal(t, 4, stats.DependencySets)

	view := c.View()
	c.Destroy()
	c.Destroy()

	stats = s.Stats()
	assert.Equal(t, 0, stats.Consumers)
	assert.Equal(t, 0, stats.DependencySets)
	assert.True(t, c.Destroyed())

	s.State().Set("a", 2)
	assert.Equal(t, 0, calls.count())

	_, err := view.Lookup("a")
	assert.ErrorIs(t, err, ErrRevoked)
	assert.Panics(t, func() { view.Get("a") })
}

func TestDestroyKeepsSharedSets(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})
	calls := &counter{}
	c1 := s.NewConsumer(nil)
	c2 := s.NewConsumer(calls.inc)

	_ = c1.View().Int("a")
	_ = c2.View().Int("a")
	c1.Destroy()

	assert.Equal(t, 1, s.Stats().DependencySets)
	s.State().Set("a", 2)
	assert.Equal(t, 1, calls.count())
}

func TestBuilderSelfReference(t *testing.T) {
	s := newStore(t, func(self *proxy.View) map[string]any {
		return map[string]any{
			"count": 1,
			"double": proxy.Getter(func(v *proxy.View) any {
				return v.Int("count") * 2
			}),
			"inc": proxy.Method(func(_ *proxy.View, _ ...any) any {
				self.Set("count", self.Int("count")+1)
				return nil
			}),
		}
	})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	assert.Equal(t, 2, c.View().Get("double"))

	_, err := c.View().Call("inc")
	require.NoError(t, err)

	assert.Equal(t, 1, calls.count())
	assert.Equal(t, 4, c.View().Get("double"))
	assert.Equal(t, 2, s.State().Int("count"))
}

func TestStrictMode(t *testing.T) {
	initial := func() map[string]any {
		return map[string]any{"createdAt": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	}

	strict := newStore(t, initial(), WithStrict(true))
	c := strict.NewConsumer(nil)
	_, err := c.View().Lookup("createdAt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `built-in object "time.Time" detected`)
	assert.ErrorIs(t, err, proxy.ErrBuiltin)

	lenient := newStore(t, initial())
	c = lenient.NewConsumer(nil)
	got, err := c.View().Lookup("createdAt")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.(time.Time).Year())
}

func TestBatchDeduplicates(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "b": 2})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)

	_ = c.View().Int("a")
	_ = c.View().Int("b")

	err := Batch(s.State(), func() {
		s.State().Set("a", 10)
		s.State().Set("b", 20)
		assert.Equal(t, 0, calls.count(), "notifications wait for the batch")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls.count())
}

func TestNestedBatchFlushesAtOutermost(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)
	_ = c.View().Int("a")

	s.Batch(func() {
		s.Batch(func() {
			s.State().Set("a", 2)
		})
		assert.Equal(t, 0, calls.count())
	})
	assert.Equal(t, 1, calls.count())
}

func TestBatchValue(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})

	got, err := BatchValue(s.State(), func() int {
		s.State().Set("a", 2)
		return s.State().Int("a")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = BatchValue(map[string]any{}, func() int { return 0 })
	assert.ErrorIs(t, err, ErrNotStore)
}

func TestPanickingBatchDiscardsNotifications(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)
	_ = c.View().Int("a")

	assert.Panics(t, func() {
		s.Batch(func() {
			s.State().Set("a", 2)
			panic("boom")
		})
	})
	assert.Equal(t, 0, calls.count())

	s.State().Set("a", 3)
	assert.Equal(t, 1, calls.count())
}

func TestFlushOverflowIsBounded(t *testing.T) {
	s := newStore(t, map[string]any{"x": 0, "y": 0}, WithMaxFlush(10))
	state := s.State()

	var c1, c2 *Consumer
	c1 = s.NewConsumer(func() { state.Set("y", state.Int("y")+1) })
	c2 = s.NewConsumer(func() { state.Set("x", state.Int("x")+1) })
	_ = c1.View().Int("x")
	_ = c2.View().Int("y")

	var overflow []Event
	s.Observe(func(ev Event) {
		if ev.Kind == EventOverflow {
			overflow = append(overflow, ev)
		}
	})

	state.Set("x", 1)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Overflows)
	assert.Equal(t, uint64(10), stats.Notifications)
	require.Len(t, overflow, 1)
	assert.Len(t, overflow[0].Consumers, 1)

	c1.Destroy()
	c2.Destroy()
}

func TestCallbackWritesJoinRunningFlush(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "b": 1})
	state := s.State()
	var order []string

	first := s.NewConsumer(func() {
		order = append(order, "first")
		state.Set("b", 2)
	})
	second := s.NewConsumer(func() { order = append(order, "second") })
	_ = first.View().Int("a")
	_ = second.View().Int("b")

	state.Set("a", 2)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, uint64(1), s.Stats().Flushes)
}

func TestOfAndCreateConsumer(t *testing.T) {
	s := newStore(t, map[string]any{"nested": map[string]any{}})

	got, ok := Of(s.State().Object("nested"))
	require.True(t, ok)
	assert.Same(t, s, got)

	c, err := CreateConsumer(s.State(), nil)
	require.NoError(t, err)
	got, ok = Of(c.View())
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err = CreateConsumer(map[string]any{}, nil)
	assert.ErrorIs(t, err, ErrNotStore)
	assert.True(t, slerrors.HasCode(err, "SL002"))

	_, ok = Of(proxy.NewLayer(proxy.Hooks{}).Wrap(map[string]any{}))
	assert.False(t, ok)
}

func TestNewRejectsScalars(t *testing.T) {
	_, err := New(42)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, slerrors.HasCode(err, "SL003"))
}

func TestObserveEvents(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1}, WithName("events"))
	c := s.NewConsumer(nil)
	_ = c.View().Int("a")

	var kinds []EventKind
	var set Event
	unsubscribe := s.Observe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventSet {
			set = ev
		}
	})

	s.State().Set("a", 2)
	unsubscribe()
	s.State().Set("a", 3)

	assert.Equal(t, []EventKind{EventSet, EventFlush}, kinds)
	assert.Equal(t, "events", set.Store)
	assert.Equal(t, "a", set.Key)
	assert.Equal(t, []uint64{c.ID()}, set.Consumers)
}

func TestMetricsAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newStore(t, map[string]any{"a": 1}, WithName("metrics"), WithRegistry(reg))
	c := s.NewConsumer(nil)
	_ = c.View().Int("a")
	s.State().Set("a", 2)

	// A second store with the same name shares the collectors.
	_ = newStore(t, map[string]any{}, WithName("metrics"), WithRegistry(reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["statelift_consumers_active"])
	assert.Equal(t, 1.0, values["statelift_notifications_total"])
	assert.Equal(t, 1.0, values["statelift_flushes_total"])
}

func TestBatchNamedRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := newStore(t, map[string]any{"a": 1}, WithTracer(tp.Tracer("test")))
	c := s.NewConsumer(nil)
	_ = c.View().Int("a")

	s.BatchNamed(context.Background(), "update-a", func() {
		s.State().Set("a", 2)
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "statelift.batch", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("statelift.batch", "update-a"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("statelift.notifications", 1))
}

func TestTrackingIsPerGoroutine(t *testing.T) {
	s := newStore(t, map[string]any{"a": 1, "b": 1})
	calls := &counter{}
	c := s.NewConsumer(calls.inc)
	_ = c.View().Int("a")

	done := make(chan struct{})
	s.Batch(func() {
		go func() {
			defer close(done)
			s.State().Set("a", 2)
		}()
		<-done
		assert.Equal(t, 1, calls.count(), "another goroutine's write is not held by this batch")
	})

	_ = s.State().Int("b")
	assert.Equal(t, 1, c.Dependencies(), "untracked reads record nothing")
}

func TestInvariantViolationPanicsWithCode(t *testing.T) {
	ix := newIndex()
	n := proxy.NewObject()
	ix.register(1, Callbacks{})
	ix.recordRead(1, n, "k", 1)
	delete(ix.members, 1)

	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, slerrors.HasCode(err, "SL100"))
		var slerr *slerrors.Error
		assert.True(t, errors.As(err, &slerr))
	}()
	ix.affectedByDelete(n, "k")
}
