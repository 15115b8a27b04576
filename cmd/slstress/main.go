package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
	"sortlist/infra/kafka"
	"sortlist/infra/logging"
	"sortlist/infra/results"
	"sortlist/infra/trace"
	"sortlist/jobs/broadcaster"
	"sortlist/service/harness"
)

type options struct {
	strategies []lock.Strategy
	cfg        harness.Config
	replayOps  int
	fairness   int

	traceDir   string
	resultsDir string
	publisher  string
	brokers    []string
	topic      string
}

func main() {
	opts, logCfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logging.Error("slstress failed", "err", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, logging.Config, error) {
	fs := flag.NewFlagSet("slstress", flag.ContinueOnError)
	def := harness.DefaultConfig()

	var (
		opts     options
		logCfg   logging.Config
		strategy string
		brokers  string
		seed     uint64
	)
	fs.StringVar(&strategy, "strategy", "all", "lock strategy: mutex, coarse-spin, node-spin, node-mcs, coarse-mutex or all")
	fs.IntVar(&opts.cfg.Workers, "workers", def.Workers, "concurrent workers")
	fs.IntVar(&opts.cfg.OpsPerWorker, "ops", def.OpsPerWorker, "operations per worker")
	fs.Int64Var(&opts.cfg.ValueRange, "range", def.ValueRange, "values are drawn from [0, range)")
	fs.IntVar(&opts.cfg.InsertPct, "insert-pct", def.InsertPct, "percentage of inserts")
	fs.IntVar(&opts.cfg.RemovePct, "remove-pct", def.RemovePct, "percentage of removes")
	fs.Uint64Var(&seed, "seed", def.Seed, "workload seed")
	fs.Int64Var(&opts.cfg.NodeLimit, "node-limit", 0, "maximum live nodes per list (0 = unbounded)")
	fs.IntVar(&opts.cfg.Backoff.Spins, "spins", def.Backoff.Spins, "busy spins before yielding")
	fs.IntVar(&opts.cfg.Backoff.Yields, "yields", def.Backoff.Yields, "yields before sleeping (0 = never sleep)")
	fs.DurationVar(&opts.cfg.Backoff.Sleep, "sleep", 20*time.Microsecond, "sleep once yields are exhausted")
	fs.IntVar(&opts.replayOps, "replay-ops", 10_000, "length of the deterministic equivalence trace")
	fs.IntVar(&opts.fairness, "fairness", 8, "contenders for the fairness probe (0 = skip)")
	fs.StringVar(&opts.traceDir, "trace-dir", "", "directory for the operation trace (empty = temp dir)")
	fs.StringVar(&opts.resultsDir, "results-dir", "", "directory for the run report store (empty = no store)")
	fs.StringVar(&opts.publisher, "publisher", "none", "report publisher: sarama, kafka-go or none")
	fs.StringVar(&brokers, "brokers", "localhost:9092", "comma-separated Kafka brokers")
	fs.StringVar(&opts.topic, "topic", "sortlist.runs", "Kafka topic for run reports")
	fs.StringVar(&logCfg.Level, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&logCfg.Format, "log-format", "text", "text or json")

	if err := fs.Parse(args); err != nil {
		return opts, logCfg, err
	}

	opts.cfg.Seed = seed
	opts.brokers = strings.Split(brokers, ",")

	if strategy == "all" {
		opts.strategies = lock.Strategies()
	} else {
		for _, name := range strings.Split(strategy, ",") {
			s, err := lock.ParseStrategy(name)
			if err != nil {
				return opts, logCfg, err
			}
			opts.strategies = append(opts.strategies, s)
		}
	}
	return opts, logCfg, opts.cfg.Validate()
}

func run(ctx context.Context, opts options) error {
	var store *results.Store
	if opts.resultsDir != "" {
		s, err := results.Open(opts.resultsDir)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	// ---------------- Concurrent runs ----------------

	var failed error
	for _, s := range opts.strategies {
		cfg := opts.cfg
		cfg.Strategy = s

		rep, err := harness.Run(ctx, cfg)
		if err != nil && !errors.Is(err, harness.ErrInvariant) {
			return err
		}
		if err != nil {
			failed = errors.CombineErrors(failed, err)
		}
		if store != nil {
			if err := saveReport(store, rep); err != nil {
				return err
			}
		}
	}

	// ---------------- Equivalence replay ----------------

	if err := replay(opts); err != nil {
		return err
	}

	// ---------------- Fairness ----------------

	if opts.fairness > 0 {
		res, err := harness.Fairness(ctx, lock.NodeMCS, opts.fairness, opts.cfg.Backoff)
		if err != nil {
			return err
		}
		logging.Info("fairness probe", "strategy", res.Strategy, "fifo", res.FIFO(),
			"arrivals", res.Arrivals, "grants", res.Grants)
		if !res.FIFO() {
			failed = errors.CombineErrors(failed, errors.New("MCS grants were not FIFO"))
		}
	}

	// ---------------- Publishing ----------------

	if store != nil && opts.publisher != "none" {
		if err := publish(ctx, store, opts); err != nil {
			return err
		}
	}
	return failed
}

func saveReport(store *results.Store, rep harness.Report) error {
	id, err := store.NextRunID()
	if err != nil {
		return err
	}
	pb, err := rep.Struct()
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return store.Put(id, pb)
}

func replay(opts options) error {
	dir := opts.traceDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "slstress-trace-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	ops := harness.Generate(opts.cfg, opts.replayOps)
	ref, err := harness.Equivalence(ops, opts.cfg.Backoff, opts.strategies[0])
	if err != nil {
		return err
	}
	harness.Annotate(ops, ref[0])

	w, err := trace.Open(trace.Config{Dir: dir})
	if err != nil {
		return err
	}
	first := w.LastSeq()
	for i := range ops {
		if err := w.Append(&ops[i]); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	var recorded []trace.Record
	if _, err := trace.Replay(dir, func(r *trace.Record) error {
		if r.Seq > first {
			recorded = append(recorded, *r)
		}
		return nil
	}); err != nil {
		return err
	}

	outcomes, err := harness.Equivalence(recorded, opts.cfg.Backoff, opts.strategies...)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if err := harness.Matches(recorded, o); err != nil {
			return err
		}
	}
	logging.Info("equivalence replay passed", "ops", len(recorded), "strategies", len(outcomes), "trace", dir)
	return nil
}

func publish(ctx context.Context, store *results.Store, opts options) error {
	var (
		pub broadcaster.Publisher
		err error
	)
	switch opts.publisher {
	case "sarama":
		pub, err = broadcaster.NewSarama(opts.brokers, opts.topic)
	case "kafka-go":
		pub = kafka.NewProducer(opts.brokers, opts.topic)
	default:
		err = errors.Newf("unknown publisher %q", opts.publisher)
	}
	if err != nil {
		return err
	}

	b := broadcaster.New(store, pub, time.Second)
	defer b.Close()

	acked, err := b.RunOnce(ctx)
	if err != nil {
		return err
	}
	logging.Info("reports published", "publisher", opts.publisher, "acked", acked)
	return nil
}
