// Package alert provides a bounded queue of short alert messages. Producers
// never block for long: a push that cannot complete within its timeout is
// dropped.
package alert

import "time"

// DefaultCapacity matches the original firmware queue depth.
const DefaultCapacity = 5

// Queue is a bounded FIFO of alert strings.
type Queue struct {
	ch chan string
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// TryPush enqueues msg, waiting at most timeout for space. It reports
// whether the message was accepted.
func (q *Queue) TryPush(msg string, timeout time.Duration) bool {
	select {
	case q.ch <- msg:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case q.ch <- msg:
		return true
	case <-t.C:
		return false
	}
}

// Poll dequeues one message without blocking.
func (q *Queue) Poll() (string, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	default:
		return "", false
	}
}

// C exposes the receive side for select loops.
func (q *Queue) C() <-chan string {
	return q.ch
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
