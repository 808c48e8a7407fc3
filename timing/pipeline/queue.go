package pipeline

import "github.com/sarchlab/akita/v4/sim"

// InstructionQueue is the bounded fetch buffer between fetch and dispatch.
type InstructionQueue struct {
	buf sim.Buffer
}

// NewInstructionQueue creates a queue holding at most capacity entries.
func NewInstructionQueue(capacity int) *InstructionQueue {
	return &InstructionQueue{
		buf: sim.NewBuffer("InstructionQueue", capacity),
	}
}

// CanPush returns true if the queue has a free slot.
func (q *InstructionQueue) CanPush() bool {
	return q.buf.CanPush()
}

// Push appends e at the tail. The queue must not be full.
func (q *InstructionQueue) Push(e *Entry) {
	q.buf.Push(e)
}

// Head returns the oldest entry without removing it, or nil.
func (q *InstructionQueue) Head() *Entry {
	if q.buf.Size() == 0 {
		return nil
	}
	return q.buf.Peek().(*Entry)
}

// Pop removes and returns the oldest entry, or nil.
func (q *InstructionQueue) Pop() *Entry {
	if q.buf.Size() == 0 {
		return nil
	}
	return q.buf.Pop().(*Entry)
}

// Len returns the number of queued entries.
func (q *InstructionQueue) Len() int {
	return q.buf.Size()
}

// Capacity returns the queue size.
func (q *InstructionQueue) Capacity() int {
	return q.buf.Capacity()
}

// Empty returns true if nothing is queued.
func (q *InstructionQueue) Empty() bool {
	return q.buf.Size() == 0
}
