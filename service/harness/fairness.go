package harness

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
	"sortlist/infra/sequence"
)

// settle is how long Fairness waits for a contender to reach a lock
// that cannot report whether the contender has queued.
const settle = 500 * time.Microsecond

type FairnessResult struct {
	Strategy lock.Strategy
	Arrivals []int
	Grants   []int
}

// FIFO reports whether grants followed arrival order.
func (r FairnessResult) FIFO() bool {
	return slices.Equal(r.Arrivals, r.Grants)
}

// Fairness queues n contenders one after another on a held lock of
// strategy s, then releases it and records the order of grants. Queue
// locks expose when a contender has enqueued; for other locks the
// arrival order is best effort.
func Fairness(ctx context.Context, s lock.Strategy, n int, b lock.Backoff) (FairnessResult, error) {
	l := s.NewListLock(b)
	if l == nil {
		l = s.NewNodeLock(b)
	}

	var (
		arrivals, grants sequence.Ledger
		holder           lock.Waiter
		wg               sync.WaitGroup
	)
	waiters := make([]lock.Waiter, n)

	l.Lock(&holder)
	_, queued := l.(*lock.MCS)

	var err error
	for i := 0; i < n && err == nil; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arrivals.Take(i)
			l.Lock(&waiters[i])
			grants.Take(i)
			l.Unlock(&waiters[i])
		}()

		if !queued {
			time.Sleep(settle)
			continue
		}
		for !waiters[i].Waiting() {
			if err = ctx.Err(); err != nil {
				break
			}
			runtime.Gosched()
		}
	}

	l.Unlock(&holder)
	wg.Wait()

	res := FairnessResult{
		Strategy: s,
		Arrivals: arrivals.Owners(),
		Grants:   grants.Owners(),
	}
	if err != nil {
		return res, errors.Wrap(err, "harness: fairness probe interrupted")
	}
	return res, nil
}
