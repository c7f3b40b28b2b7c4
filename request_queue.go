package lotto

import (
	"fmt"
	"sync"
)

type RequestQueue interface {
	Push(req DrawRequest)
	Poll() (DrawRequest, error)
	Len() int
}

// MemRequestQueue is a FIFO queue of draw requests waiting for the oracle.
type MemRequestQueue struct {
	reqs []DrawRequest
	sync.RWMutex
}

// emptyQueErr is for calling peek(), Poll() when the queue is empty.
type emptyQueErr struct{}

func (e *emptyQueErr) Error() string {
	return "request queue is empty."
}

// indexBoundaryErr is for calling at
type indexBoundaryErr struct {
	queSize int
	want    int
}

func (e *indexBoundaryErr) Error() string {
	return fmt.Sprintf("index is larger than request queue size.\n"+
		"queue size : %d, you want : %d", e.queSize, e.want)
}

func IsEmptyQueue(err error) bool {
	_, ok := err.(*emptyQueErr)
	return ok
}

func NewRequestQueue() *MemRequestQueue {
	return &MemRequestQueue{
		reqs: []DrawRequest{},
	}
}

// empty checks whether the queue is empty or not.
func (q *MemRequestQueue) empty() bool {
	return len(q.reqs) == 0
}

// peek returns first element of the queue, but not erase it.
func (q *MemRequestQueue) peek() (DrawRequest, error) {
	if q.empty() {
		return DrawRequest{}, &emptyQueErr{}
	}

	return q.reqs[0], nil
}

// Poll returns first element of the queue, and erase it.
func (q *MemRequestQueue) Poll() (DrawRequest, error) {
	q.Lock()
	defer q.Unlock()

	ret, err := q.peek()
	if err != nil {
		return DrawRequest{}, err
	}

	q.reqs = q.reqs[1:]
	return ret, nil
}

func (q *MemRequestQueue) Len() int {
	q.RLock()
	defer q.RUnlock()
	return len(q.reqs)
}

// at returns element of index in the queue
func (q *MemRequestQueue) at(index int) (DrawRequest, error) {
	q.RLock()
	defer q.RUnlock()

	if index >= len(q.reqs) {
		return DrawRequest{}, &indexBoundaryErr{
			queSize: len(q.reqs),
			want:    index,
		}
	}
	return q.reqs[index], nil
}

func (q *MemRequestQueue) Push(req DrawRequest) {
	q.Lock()
	defer q.Unlock()

	q.reqs = append(q.reqs, req)
}
