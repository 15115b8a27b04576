package sequence

import (
	"sync"
	"sync/atomic"
)

// Sequencer generates strictly monotonic tickets.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first ticket is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued ticket.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset resumes numbering after v, e.g. after a trace replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}

// Ledger records which participant took each ticket, in ticket order.
type Ledger struct {
	mu     sync.Mutex
	seq    Sequencer
	owners []int
}

// Take issues the next ticket to id.
func (l *Ledger) Take(id int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.seq.Next()
	l.owners = append(l.owners, id)
	return t
}

// Owners returns participant ids ordered by ticket.
func (l *Ledger) Owners() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.owners))
	copy(out, l.owners)
	return out
}
