package memory

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrExhausted is returned by Get when the pool's capacity is in use.
var ErrExhausted = errors.New("memory: pool exhausted")

// Stats is a point-in-time view of a pool's bookkeeping.
type Stats struct {
	Live      int64
	Allocated uint64
	Released  uint64
}

// Pool is a typed object pool with live-object accounting.
type Pool[T any] struct {
	p     *sync.Pool
	limit int64

	live      atomic.Int64
	allocated atomic.Uint64
	released  atomic.Uint64
}

// NewPool returns an unbounded pool.
func NewPool[T any](ctor func() *T) *Pool[T] {
	return NewBoundedPool(ctor, 0)
}

// NewBoundedPool returns a pool that refuses to hand out more than
// limit live objects. limit <= 0 means unbounded.
func NewBoundedPool[T any](ctor func() *T, limit int64) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		limit: limit,
	}
}

func (p *Pool[T]) Get() (*T, error) {
	if err := p.reserve(); err != nil {
		return nil, err
	}
	p.allocated.Add(1)
	return p.p.Get().(*T), nil
}

func (p *Pool[T]) reserve() error {
	if p.limit <= 0 {
		p.live.Add(1)
		return nil
	}
	for {
		n := p.live.Load()
		if n >= p.limit {
			return errors.Wrapf(ErrExhausted, "limit %d", p.limit)
		}
		if p.live.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Put returns v to the pool. The caller must not touch v afterwards.
func (p *Pool[T]) Put(v *T) {
	if p.live.Add(-1) < 0 {
		panic(errors.AssertionFailedf("memory: Put without matching Get"))
	}
	p.released.Add(1)
	p.p.Put(v)
}

// Live returns the number of objects handed out and not yet returned.
func (p *Pool[T]) Live() int64 {
	return p.live.Load()
}

func (p *Pool[T]) Stats() Stats {
	return Stats{
		Live:      p.live.Load(),
		Allocated: p.allocated.Load(),
		Released:  p.released.Load(),
	}
}
