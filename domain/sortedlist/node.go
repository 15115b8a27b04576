package sortedlist

import (
	"cmp"

	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
)

type node[T cmp.Ordered] struct {
	value T
	next  *node[T]
	lock  lock.Lock

	// retired is set while the node sits in the allocator.
	retired bool
}

// cursor is the state of one traversal. pw and cw are the wait
// records for the locks held on pred and curr; they swap roles on
// every step.
type cursor[T cmp.Ordered] struct {
	list    *List[T]
	pred    *node[T]
	curr    *node[T]
	pw, cw  *lock.Waiter
	gw      lock.Waiter
	records [2]lock.Waiter
}

// start takes the list lock (if any), the head lock and the first node.
func (c *cursor[T]) start(l *List[T]) {
	c.list = l
	c.pw, c.cw = &c.records[0], &c.records[1]
	if l.global != nil {
		l.global.Lock(&c.gw)
	}

	c.pred = &l.head
	c.pred.lock.Lock(c.pw)
	c.curr = c.pred.next
	if c.curr != nil {
		c.lockCurr()
	}
}

// advance moves the window one node forward. curr must be non-nil.
func (c *cursor[T]) advance() {
	c.pred.lock.Unlock(c.pw)
	c.pred = c.curr
	c.pw, c.cw = c.cw, c.pw
	c.curr = c.pred.next
	if c.curr != nil {
		c.lockCurr()
	}
}

// seek advances while the current node is smaller than v.
func (c *cursor[T]) seek(v T) {
	for c.curr != nil && c.curr.value < v {
		c.advance()
	}
}

func (c *cursor[T]) lockCurr() {
	c.curr.lock.Lock(c.cw)
	if c.curr.retired {
		panic(errors.AssertionFailedf("sortedlist: traversal reached a released node"))
	}
}

// release drops every lock the cursor holds, never a nil node's.
func (c *cursor[T]) release() {
	if c.curr != nil {
		c.curr.lock.Unlock(c.cw)
	}
	c.pred.lock.Unlock(c.pw)
	if c.list.global != nil {
		c.list.global.Unlock(&c.gw)
	}
}
