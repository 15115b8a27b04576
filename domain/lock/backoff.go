package lock

import (
	"runtime"
	"time"
)

// Backoff bounds how a spinning acquirer burns CPU. The first Spins
// iterations re-read the lock word without yielding, the next Yields
// iterations call runtime.Gosched, and every iteration after that
// sleeps for Sleep. Yields == 0 means yield forever.
type Backoff struct {
	Spins  int
	Yields int
	Sleep  time.Duration
}

// DefaultBackoff yields on every iteration.
var DefaultBackoff = Backoff{}

const minSleep = time.Microsecond

func (b Backoff) pause(n int) {
	switch {
	case n < b.Spins:
		return
	case b.Yields == 0 || n < b.Spins+b.Yields:
		runtime.Gosched()
	default:
		d := b.Sleep
		if d < minSleep {
			d = minSleep
		}
		time.Sleep(d)
	}
}
