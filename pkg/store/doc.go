// Package store implements fine-grained reactive state.
//
// A Store owns a state graph (objects and arrays, see package proxy). A
// Consumer reads the graph through its own view; each read records a
// dependency of the consumer on the (node, key) pair that was read, along
// with the value observed. Writes notify exactly the consumers whose
// observed value changed:
//
//	s, _ := store.New(map[string]any{"a": 1, "b": 2})
//
//	c := s.NewConsumer(func() { fmt.Println("a changed") })
//	_ = c.View().Int("a")
//
//	s.State().Set("b", 3) // nothing: c never read b
//	s.State().Set("a", 1) // nothing: same value
//	s.State().Set("a", 2) // prints "a changed"
//
// Notifications are batched per goroutine: every write runs in an implicit
// batch, Batch groups several writes, and each affected consumer is notified
// once when the outermost batch completes.
//
// Dependency tracking is scoped to the goroutine performing the read.
// Consumers are not safe for concurrent writes to the same nodes without
// external synchronization of the writers.
package store
