package lock

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// MCS is a FIFO queue lock. Each acquirer appends its Waiter to the
// tail and spins on its own record until the predecessor hands off.
type MCS struct {
	tail    atomic.Pointer[Waiter]
	backoff Backoff
}

func NewMCS(b Backoff) *MCS {
	return &MCS{backoff: b}
}

func (l *MCS) Lock(w *Waiter) {
	if w == nil {
		panic(errors.AssertionFailedf("lock: MCS acquire without wait record"))
	}
	w.next.Store(nil)

	pred := l.tail.Swap(w)
	if pred == nil {
		return
	}

	// locked must be set before the predecessor can see us.
	w.locked.Store(true)
	pred.next.Store(w)

	for n := 0; w.locked.Load(); n++ {
		l.backoff.pause(n)
	}
}

func (l *MCS) Unlock(w *Waiter) {
	if w == nil {
		panic(errors.AssertionFailedf("lock: MCS release without wait record"))
	}

	succ := w.next.Load()
	if succ == nil {
		if l.tail.CompareAndSwap(w, nil) {
			return
		}
		// A successor swapped itself in but has not linked yet.
		for n := 0; ; n++ {
			if succ = w.next.Load(); succ != nil {
				break
			}
			if l.tail.Load() == nil {
				panic(errors.AssertionFailedf("lock: MCS release by a non-holder"))
			}
			l.backoff.pause(n)
		}
	}

	w.next.Store(nil)
	succ.locked.Store(false)
}

// Free reports whether nobody holds or waits for the lock.
func (l *MCS) Free() bool {
	return l.tail.Load() == nil
}
