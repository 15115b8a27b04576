package lock

import (
	"sync"

	"go.uber.org/atomic"
)

// Lock is the capability shared by all strategies.
type Lock interface {
	Lock(w *Waiter)
	Unlock(w *Waiter)
}

// Waiter is a wait record owned by the caller for the duration of one
// acquisition. Only MCS reads it.
type Waiter struct {
	next   atomic.Pointer[Waiter]
	locked atomic.Bool
}

// Waiting reports whether the record is queued behind another holder.
func (w *Waiter) Waiting() bool {
	return w.locked.Load()
}

// ---------- blocking mutex ----------

// Mutex suspends contended callers in the runtime scheduler.
type Mutex struct {
	mu sync.Mutex
}

func (m *Mutex) Lock(*Waiter)   { m.mu.Lock() }
func (m *Mutex) Unlock(*Waiter) { m.mu.Unlock() }

// ---------- no-op ----------

// Nop guards nothing. Coarse lists place it in every node.
type Nop struct{}

func (Nop) Lock(*Waiter)   {}
func (Nop) Unlock(*Waiter) {}
