package harness

import (
	"math/rand/v2"
	"slices"

	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
	"sortlist/domain/sortedlist"
	"sortlist/infra/trace"
)

var ErrDiverged = errors.New("harness: strategies diverged")

// Outcome is what one strategy observed for a replayed sequence.
type Outcome struct {
	Strategy lock.Strategy
	// Results holds one entry per op, in the trace.Record.Result encoding.
	Results []int64
	Final   []int64
}

// Generate builds n deterministic operations from cfg's seed, value
// range and op mix. Results are left zero.
func Generate(cfg Config, n int) []trace.Record {
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x5eed))
	ops := make([]trace.Record, n)
	for i := range ops {
		v := rng.Int64N(cfg.ValueRange)
		op := trace.OpCount
		switch p := rng.IntN(100); {
		case p < cfg.InsertPct:
			op = trace.OpInsert
		case p < cfg.InsertPct+cfg.RemovePct:
			op = trace.OpRemove
		}
		ops[i] = trace.Record{Op: op, Seq: uint64(i + 1), Value: v}
	}
	return ops
}

// Apply runs ops in order on l from the calling goroutine.
func Apply(l *sortedlist.List[int64], ops []trace.Record) (Outcome, error) {
	out := Outcome{
		Strategy: l.Strategy(),
		Results:  make([]int64, len(ops)),
	}
	for i, r := range ops {
		switch r.Op {
		case trace.OpInsert:
			if err := l.Insert(r.Value); err != nil {
				return out, errors.Wrapf(err, "op %d", r.Seq)
			}
		case trace.OpRemove:
			if l.Remove(r.Value) {
				out.Results[i] = 1
			}
		case trace.OpCount:
			out.Results[i] = int64(l.Count(r.Value))
		default:
			return out, errors.Newf("harness: op %d has unknown type %d", r.Seq, r.Op)
		}
	}
	out.Final = l.Snapshot()
	return out, nil
}

// Annotate copies an outcome's results into ops so they can be traced.
func Annotate(ops []trace.Record, o Outcome) {
	for i := range ops {
		ops[i].Result = o.Results[i]
	}
}

// Equivalence replays ops on a fresh list per strategy and requires
// identical per-op results and final contents.
func Equivalence(ops []trace.Record, backoff lock.Backoff, strategies ...lock.Strategy) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(strategies))
	for _, s := range strategies {
		l := sortedlist.New[int64](sortedlist.Config{Strategy: s, Backoff: backoff})
		o, err := Apply(l, ops)
		l.Close()
		if err != nil {
			return outcomes, errors.Wrapf(err, "strategy %s", s)
		}
		outcomes = append(outcomes, o)

		if len(outcomes) > 1 {
			if err := compare(ops, outcomes[0], o); err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}

// Matches checks o against the results recorded in ops.
func Matches(ops []trace.Record, o Outcome) error {
	for i, r := range ops {
		if o.Results[i] != r.Result {
			return errors.Wrapf(ErrDiverged, "%s: %s(%d) seq %d returned %d, trace has %d",
				o.Strategy, r.Op, r.Value, r.Seq, o.Results[i], r.Result)
		}
	}
	return nil
}

func compare(ops []trace.Record, ref, o Outcome) error {
	for i := range ops {
		if ref.Results[i] != o.Results[i] {
			r := ops[i]
			return errors.Wrapf(ErrDiverged, "%s(%d) seq %d: %s=%d %s=%d",
				r.Op, r.Value, r.Seq, ref.Strategy, ref.Results[i], o.Strategy, o.Results[i])
		}
	}
	if !slices.Equal(ref.Final, o.Final) {
		return errors.Wrapf(ErrDiverged, "final contents differ between %s (%d values) and %s (%d values)",
			ref.Strategy, len(ref.Final), o.Strategy, len(o.Final))
	}
	return nil
}
