package lock

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Strategy selects which lock guards which scope of a list.
type Strategy uint8

const (
	// NodeMutex couples per-node blocking mutexes hand over hand.
	NodeMutex Strategy = iota
	// CoarseSpin guards the whole list with one TATAS lock.
	CoarseSpin
	// NodeSpin couples per-node TATAS locks.
	NodeSpin
	// NodeMCS couples per-node MCS queue locks.
	NodeMCS
	// CoarseMutex guards the whole list with one blocking mutex.
	CoarseMutex
)

var ErrUnknownStrategy = errors.New("lock: unknown strategy")

var strategyNames = [...]string{
	NodeMutex:   "mutex",
	CoarseSpin:  "coarse-spin",
	NodeSpin:    "node-spin",
	NodeMCS:     "node-mcs",
	CoarseMutex: "coarse-mutex",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// ParseStrategy maps a flag value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownStrategy, "%q", name)
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategyNames))
	for i := range strategyNames {
		out[i] = Strategy(i)
	}
	return out
}

// Coarse reports whether a single list-wide lock serializes operations.
func (s Strategy) Coarse() bool {
	return s == CoarseSpin || s == CoarseMutex
}

// NewListLock returns the list-wide lock, or nil for per-node strategies.
func (s Strategy) NewListLock(b Backoff) Lock {
	switch s {
	case CoarseSpin:
		return NewTATAS(b)
	case CoarseMutex:
		return &Mutex{}
	default:
		return nil
	}
}

// NewNodeLock returns the lock embedded in each node and in the head
// sentinel.
func (s Strategy) NewNodeLock(b Backoff) Lock {
	switch s {
	case NodeMutex:
		return &Mutex{}
	case NodeSpin:
		return NewTATAS(b)
	case NodeMCS:
		return NewMCS(b)
	default:
		return Nop{}
	}
}
