package store

import (
	"context"
	"fmt"
	"time"

	slerrors "github.com/vango-dev/statelift/internal/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Batch groups the writes made by fn into a single notification phase.
// Every consumer affected by any of the writes is notified once, in the order
// it was first affected, when the outermost batch of the calling goroutine
// completes.
//
// Batches can be nested. Every write already runs in an implicit batch of
// its own, so Batch is only needed to group several writes.
//
// Example:
//
//	s.Batch(func() {
//	    state.Set("firstName", "John")
//	    state.Set("lastName", "Doe")
//	})
//	// Consumers that read both keys are notified once.
func (s *Store) Batch(fn func()) {
	s.batch(fn)
}

// BatchNamed runs fn as a batch inside a trace span named after the batch.
// The span records how many consumers the batch notified.
func (s *Store) BatchNamed(ctx context.Context, name string, fn func()) {
	_, span := s.cfg.Tracer.Start(ctx, "statelift.batch",
		trace.WithAttributes(
			attribute.String("statelift.store", s.cfg.Name),
			attribute.String("statelift.batch", name),
		),
	)
	defer span.End()

	var delivered int
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("batch %s panicked: %v", name, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			panic(r)
		}
		span.SetAttributes(attribute.Int("statelift.notifications", delivered))
		span.SetStatus(codes.Ok, "")
	}()

	s.cfg.Logger.Debug("batch start", "store", s.cfg.Name, "batch", name)
	delivered = s.batch(fn)
	s.cfg.Logger.Debug("batch end", "store", s.cfg.Name, "batch", name, "notifications", delivered)
}

// Batch runs fn as a batch of the store that state belongs to.
func Batch(state any, fn func()) error {
	s, ok := Of(state)
	if !ok {
		return notStore(state)
	}
	s.batch(fn)
	return nil
}

// BatchValue is Batch for a function returning a value.
func BatchValue[T any](state any, fn func() T) (T, error) {
	var out T
	err := Batch(state, func() {
		out = fn()
	})
	return out, err
}

func notStore(state any) error {
	return slerrors.New("SL002").
		WithDetailf("got %T", state).
		Wrap(ErrNotStore)
}

// batch runs fn with the calling goroutine's batch depth raised and flushes
// when the outermost batch completes. It returns the number of consumers
// notified by that flush. Notifications scheduled by a batch that panics are
// discarded.
func (s *Store) batch(fn func()) (delivered int) {
	gid, tc := s.tracking()
	tc.batchDepth++

	completed := false
	defer func() {
		tc.batchDepth--
		if tc.batchDepth == 0 {
			if completed {
				delivered = s.flush(tc)
			} else if !tc.flushing {
				tc.pending = tc.pending[:0]
				clear(tc.queued)
			}
		}
		s.release(gid, tc)
	}()

	fn()
	completed = true
	return 0
}

// flush notifies the pending consumers in FIFO order. Consumers scheduled by
// a callback join the queue of the flush already running. At most MaxFlush
// notifications are delivered; the remainder is dropped.
func (s *Store) flush(tc *trackingContext) int {
	if tc.flushing || len(tc.pending) == 0 {
		return 0
	}
	tc.flushing = true
	defer func() { tc.flushing = false }()

	start := time.Now()
	var ids []uint64
	observed := s.observers.active()
	delivered := 0

	for len(tc.pending) > 0 {
		if delivered >= s.cfg.MaxFlush {
			s.overflow(tc, delivered)
			break
		}
		reg := tc.pending[0]
		tc.pending[0] = nil
		tc.pending = tc.pending[1:]
		delete(tc.queued, reg.id)

		delivered++
		if observed {
			ids = append(ids, reg.id)
		}
		if reg.cb.Invalidate != nil {
			reg.cb.Invalidate()
		}
	}
	if len(tc.pending) == 0 {
		tc.pending = nil
	}

	s.notified.Add(uint64(delivered))
	s.flushes.Add(1)
	s.metrics.notifications.Add(float64(delivered))
	s.metrics.flushes.Inc()
	s.metrics.flushSize.Observe(float64(delivered))
	if observed {
		s.emit(Event{Kind: EventFlush, Consumers: ids, Duration: time.Since(start)})
	}
	return delivered
}

func (s *Store) overflow(tc *trackingContext, delivered int) {
	dropped := make([]uint64, len(tc.pending))
	for i, reg := range tc.pending {
		dropped[i] = reg.id
	}
	tc.pending = nil
	clear(tc.queued)

	s.overflows.Add(1)
	s.metrics.overflows.Inc()

	err := slerrors.New("SL004").
		WithDetailf("%d notifications delivered, %d dropped", delivered, len(dropped)).
		Wrap(ErrFlushOverflow)
	s.cfg.Logger.Error("flush overflow", "store", s.cfg.Name, "error", err)
	s.emit(Event{Kind: EventOverflow, Consumers: dropped})
}
