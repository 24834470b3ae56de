package runner

import "sync"

// chain serializes work: tasks run strictly in enqueue order, at most
// one at a time. Each task is gated on the completion of the previously
// enqueued task, so a panic-free task list behaves like one chained
// continuation.
type chain struct {
	mu   sync.Mutex
	tail chan struct{}
}

func newChain() *chain {
	done := make(chan struct{})
	close(done)
	return &chain{tail: done}
}

// enqueue schedules fn after all previously enqueued work. The returned
// channel is closed when fn finishes.
func (c *chain) enqueue(fn func()) <-chan struct{} {
	c.mu.Lock()
	prev := c.tail
	done := make(chan struct{})
	c.tail = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		<-prev
		fn()
	}()
	return done
}

// wait blocks until everything enqueued so far has finished.
func (c *chain) wait() {
	c.mu.Lock()
	tail := c.tail
	c.mu.Unlock()
	<-tail
}
