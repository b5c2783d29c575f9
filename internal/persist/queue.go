package persist

import "sync"

// batchQueue accumulates items and cuts them into batches of at most size.
// Full batches are detached immediately so appends never wait on a write.
type batchQueue[T any] struct {
	mu    sync.Mutex
	size  int
	items []T
	ready [][]T
}

func newBatchQueue[T any](size int) *batchQueue[T] {
	return &batchQueue[T]{size: size, items: make([]T, 0, size)}
}

// add appends v and reports whether a full batch was cut.
func (q *batchQueue[T]) add(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, v)
	if len(q.items) < q.size {
		return false
	}
	q.ready = append(q.ready, q.items)
	q.items = make([]T, 0, q.size)
	return true
}

// takeReady detaches the full batches.
func (q *batchQueue[T]) takeReady() [][]T {
	q.mu.Lock()
	defer q.mu.Unlock()
	ready := q.ready
	q.ready = nil
	return ready
}

// takeAll detaches every pending item, full batches first.
func (q *batchQueue[T]) takeAll() [][]T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.ready
	if len(q.items) > 0 {
		out = append(out, q.items)
		q.items = make([]T, 0, q.size)
	}
	q.ready = nil
	return out
}

func (q *batchQueue[T]) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	for _, b := range q.ready {
		n += len(b)
	}
	return n
}
