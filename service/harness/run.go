package harness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"sortlist/domain/sortedlist"
	"sortlist/infra/logging"
)

var ErrInvariant = errors.New("harness: invariant violated")

// tally is one worker's private bookkeeping, indexed by value.
type tally struct {
	inserted []int
	removed  []int
	counts   int
	rejected int
}

// Run executes cfg's workload against one shared list and verifies it.
// A report is returned even when invariants fail; the error then wraps
// ErrInvariant.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	l := sortedlist.New[int64](sortedlist.Config{
		Strategy:  cfg.Strategy,
		Backoff:   cfg.Backoff,
		NodeLimit: cfg.NodeLimit,
	})

	tallies := make([]tally, cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			return work(gctx, l, cfg, w, &tallies[w])
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)
	if err != nil {
		l.Close()
		return Report{}, errors.Wrapf(err, "harness: %s run aborted", cfg.Strategy)
	}

	rep := Report{
		Strategy: cfg.Strategy.String(),
		Workers:  cfg.Workers,
		Ops:      cfg.Workers * cfg.OpsPerWorker,
		Duration: elapsed,
	}
	for _, t := range tallies {
		for v := range t.inserted {
			rep.Inserts += t.inserted[v]
			rep.Removes += t.removed[v]
		}
		rep.Counts += t.counts
		rep.Rejected += t.rejected
	}

	rep.Violations = verify(l, cfg.ValueRange, tallies)
	rep.FinalLen = l.Len()

	l.Close()
	rep.LiveAfterClose = l.Allocator().Live
	if rep.LiveAfterClose != 0 {
		rep.Violations = append(rep.Violations,
			fmt.Sprintf("%d nodes still live after close", rep.LiveAfterClose))
	}

	logging.Info("run finished",
		"strategy", rep.Strategy,
		"workers", rep.Workers,
		"ops", rep.Ops,
		"duration", rep.Duration,
		"final_len", rep.FinalLen,
		"ok", rep.OK(),
	)

	if !rep.OK() {
		return rep, errors.Wrapf(ErrInvariant, "%s: %d violations, first: %s",
			rep.Strategy, len(rep.Violations), rep.Violations[0])
	}
	return rep, nil
}

func work(ctx context.Context, l *sortedlist.List[int64], cfg Config, id int, t *tally) error {
	t.inserted = make([]int, cfg.ValueRange)
	t.removed = make([]int, cfg.ValueRange)
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(id)))

	for i := 0; i < cfg.OpsPerWorker; i++ {
		if i&0xff == 0 && ctx.Err() != nil {
			return ctx.Err()
		}

		v := rng.Int64N(cfg.ValueRange)
		switch p := rng.IntN(100); {
		case p < cfg.InsertPct:
			if err := l.Insert(v); err != nil {
				// allocator refused; the list is unchanged
				t.rejected++
				continue
			}
			t.inserted[v]++
		case p < cfg.InsertPct+cfg.RemovePct:
			if l.Remove(v) {
				t.removed[v]++
			}
		default:
			l.Count(v)
			t.counts++
		}
	}
	return nil
}

// verify checks a quiescent list against the workers' tallies.
func verify(l *sortedlist.List[int64], valueRange int64, tallies []tally) []string {
	var out []string

	snap := l.Snapshot()
	if !slices.IsSorted(snap) {
		out = append(out, "list is not sorted")
	}

	total := 0
	for v := int64(0); v < valueRange; v++ {
		want := 0
		for _, t := range tallies {
			want += t.inserted[v] - t.removed[v]
		}
		total += want
		if got := l.Count(v); got != want {
			out = append(out, fmt.Sprintf("count(%d) = %d, want %d", v, got, want))
		}
	}
	if len(snap) != total {
		out = append(out, fmt.Sprintf("length %d, want %d", len(snap), total))
	}
	return out
}
