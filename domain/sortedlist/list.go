package sortedlist

import (
	"cmp"

	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
	"sortlist/infra/memory"
)

// Config fixes a list's locking strategy and allocator at construction.
type Config struct {
	Strategy lock.Strategy
	Backoff  lock.Backoff
	// NodeLimit caps live nodes; 0 means unbounded.
	NodeLimit int64
}

// List is a sorted multiset safe for concurrent use.
type List[T cmp.Ordered] struct {
	strategy lock.Strategy
	global   lock.Lock

	// head is a sentinel; its lock is the head lock and head.next is
	// the first element.
	head node[T]
	pool *memory.Pool[node[T]]
}

func New[T cmp.Ordered](cfg Config) *List[T] {
	l := &List[T]{
		strategy: cfg.Strategy,
		global:   cfg.Strategy.NewListLock(cfg.Backoff),
	}
	l.head.lock = cfg.Strategy.NewNodeLock(cfg.Backoff)
	l.pool = memory.NewBoundedPool(func() *node[T] {
		return &node[T]{lock: cfg.Strategy.NewNodeLock(cfg.Backoff)}
	}, cfg.NodeLimit)
	return l
}

func (l *List[T]) Strategy() lock.Strategy {
	return l.strategy
}

// Insert adds v in front of any equal values. It fails only when the
// allocator is exhausted, in which case no lock is held and the list
// is unchanged.
func (l *List[T]) Insert(v T) error {
	n, err := l.alloc(v)
	if err != nil {
		return errors.Wrapf(err, "sortedlist: insert %v", v)
	}

	var c cursor[T]
	c.start(l)
	c.seek(v)
	n.next = c.curr
	c.pred.next = n
	c.release()
	return nil
}

// Remove unlinks the first occurrence of v and reports whether one was
// found.
func (l *List[T]) Remove(v T) bool {
	var c cursor[T]
	c.start(l)
	c.seek(v)

	victim := c.curr
	if victim == nil || victim.value != v {
		c.release()
		return false
	}

	c.pred.next = victim.next
	c.release()
	l.free(victim)
	return true
}

// Count returns how many nodes equal to v the traversal passes.
// Concurrent updates behind the walker are not reflected.
func (l *List[T]) Count(v T) int {
	var c cursor[T]
	c.start(l)
	c.seek(v)

	n := 0
	for c.curr != nil && c.curr.value == v {
		n++
		c.advance()
	}
	c.release()
	return n
}

// Snapshot returns the values in list order. It is exact only at a
// quiescent point.
func (l *List[T]) Snapshot() []T {
	var out []T
	l.walk(func(v T) { out = append(out, v) })
	return out
}

// Len counts the linked nodes with the same caveat as Snapshot.
func (l *List[T]) Len() int {
	n := 0
	l.walk(func(T) { n++ })
	return n
}

func (l *List[T]) walk(fn func(T)) {
	var c cursor[T]
	c.start(l)
	for c.curr != nil {
		fn(c.curr.value)
		c.advance()
	}
	c.release()
}

// Close drains the list by repeated removal of its first element. No
// other goroutine may use the list concurrently or afterwards.
func (l *List[T]) Close() {
	for first := l.head.next; first != nil; first = l.head.next {
		l.Remove(first.value)
	}
}

// Allocator reports node bookkeeping for this list.
func (l *List[T]) Allocator() memory.Stats {
	return l.pool.Stats()
}

func (l *List[T]) alloc(v T) (*node[T], error) {
	n, err := l.pool.Get()
	if err != nil {
		return nil, err
	}
	n.value = v
	n.next = nil
	n.retired = false
	return n, nil
}

func (l *List[T]) free(n *node[T]) {
	if n.retired {
		panic(errors.AssertionFailedf("sortedlist: node released twice"))
	}
	var zero T
	n.value = zero
	n.next = nil
	n.retired = true
	l.pool.Put(n)
}
