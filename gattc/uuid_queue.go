package gattc

import (
	"github.com/ARMmbed/mbed-os-sub118/logger"
)

// invalidIndex is returned by dequeue on an empty queue.
const invalidIndex = -1

// uuidQueue holds, in FIFO order, the cache indices whose UUID still has
// to be fetched with a read-by-UUID request. The capacity matches the
// cache it indexes into.
type uuidQueue struct {
	name    string
	parent  *ServiceDiscovery
	indices []int
	count   int

	// discovering is the parent state while a read is in flight, resume the
	// state to go back to once the queue drains.
	discovering discoveryState
	resume      discoveryState

	// launch issues the read for the given cache index.
	launch func(index int) error
}

func newUUIDQueue(name string, parent *ServiceDiscovery, capacity int, discovering, resume discoveryState, launch func(int) error) *uuidQueue {
	q := &uuidQueue{
		name:        name,
		parent:      parent,
		indices:     make([]int, capacity),
		discovering: discovering,
		resume:      resume,
		launch:      launch,
	}
	q.reset()
	return q
}

func (q *uuidQueue) reset() {
	for i := range q.indices {
		q.indices[i] = invalidIndex
	}
	q.count = 0
}

// enqueue appends index. It reports false when the queue is full.
func (q *uuidQueue) enqueue(index int) bool {
	if q.count == len(q.indices) {
		return false
	}
	q.indices[q.count] = index
	q.count++
	return true
}

// dequeue removes and returns the front index, or invalidIndex.
func (q *uuidQueue) dequeue() int {
	if q.count == 0 {
		return invalidIndex
	}
	first := q.indices[0]
	copy(q.indices, q.indices[1:q.count])
	q.count--
	q.indices[q.count] = invalidIndex
	return first
}

// first peeks at the front index. The queue must not be empty.
func (q *uuidQueue) first() int {
	return q.indices[0]
}

func (q *uuidQueue) len() int {
	return q.count
}

// triggerFirst issues the read for the front entry. Entries whose read
// cannot be issued are dropped and keep their placeholder UUID. When the
// queue drains without a read in flight the parent goes back to resume.
func (q *uuidQueue) triggerFirst() {
	for q.count > 0 {
		q.parent.setState(q.discovering)
		index := q.first()
		err := q.launch(index)
		if err == nil {
			return
		}
		logger.Debug(logPrefix, "%s uuid read for index %d not issued: %v", q.name, index, err)
		q.dequeue()
	}
	if q.parent.state == q.discovering {
		q.parent.setState(q.resume)
	}
}
