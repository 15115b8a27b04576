package lock

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// TATAS is a test-and-test-and-set spinlock. Waiters spin on a plain
// load and only attempt the swap once the flag reads free.
type TATAS struct {
	state   atomic.Bool
	backoff Backoff
}

func NewTATAS(b Backoff) *TATAS {
	return &TATAS{backoff: b}
}

func (l *TATAS) Lock(*Waiter) {
	n := 0
	for {
		for l.state.Load() {
			l.backoff.pause(n)
			n++
		}
		if !l.state.Swap(true) {
			return
		}
	}
}

func (l *TATAS) Unlock(*Waiter) {
	if !l.state.Swap(false) {
		panic(errors.AssertionFailedf("lock: unlock of free TATAS lock"))
	}
}

// Locked reports the current flag value.
func (l *TATAS) Locked() bool {
	return l.state.Load()
}
