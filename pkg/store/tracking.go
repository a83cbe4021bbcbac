package store

import (
	"runtime"
	"sync/atomic"
)

// trackingContext holds the reactive state of one goroutine for one store.
// It is only ever touched by the goroutine it belongs to.
type trackingContext struct {
	// consumer is the id of the consumer whose read is in progress, 0 when
	// reads are not tracked.
	consumer uint64

	// batchDepth tracks nested batches. Notifications are queued while it
	// is > 0 and flushed when the outermost batch completes.
	batchDepth int

	// pending is the FIFO of scheduled consumers, deduplicated by id
	// through queued.
	pending []*registration
	queued  map[uint64]struct{}

	// flushing guards against re-entrant flushes from within a callback.
	flushing bool
}

func (tc *trackingContext) idle() bool {
	return tc.consumer == 0 && tc.batchDepth == 0 && !tc.flushing && len(tc.pending) == 0
}

// consumerIDCounter is the source of consumer ids. Ids start at 1; 0 means
// no consumer.
var consumerIDCounter uint64

func nextConsumerID() uint64 {
	return atomic.AddUint64(&consumerIDCounter, 1)
}

// getGoroutineID returns the id of the calling goroutine, parsed from the
// header of its stack trace ("goroutine <id> [...").
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// tracking returns the calling goroutine's context, creating it if needed.
func (s *Store) tracking() (uint64, *trackingContext) {
	gid := getGoroutineID()
	if tc, ok := s.contexts.Load(gid); ok {
		return gid, tc.(*trackingContext)
	}
	tc := &trackingContext{queued: make(map[uint64]struct{})}
	s.contexts.Store(gid, tc)
	return gid, tc
}

// currentConsumer returns the consumer whose read is in progress on the
// calling goroutine. Plain reads never allocate a context.
func (s *Store) currentConsumer() uint64 {
	tc, ok := s.contexts.Load(getGoroutineID())
	if !ok {
		return 0
	}
	return tc.(*trackingContext).consumer
}

// enterConsumer makes id the current consumer until the returned function
// is called, which restores the previous one.
func (s *Store) enterConsumer(id uint64) func() {
	gid, tc := s.tracking()
	prev := tc.consumer
	tc.consumer = id
	return func() {
		tc.consumer = prev
		s.release(gid, tc)
	}
}

// release forgets an idle context so finished goroutines do not leak.
func (s *Store) release(gid uint64, tc *trackingContext) {
	if tc.idle() {
		s.contexts.CompareAndDelete(gid, tc)
	}
}
