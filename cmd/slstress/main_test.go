package main

import (
	"context"
	"testing"

	"sortlist/domain/lock"
	"sortlist/infra/results"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, logCfg, err := parseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.strategies) != len(lock.Strategies()) {
		t.Errorf("expected all strategies, got %v", opts.strategies)
	}
	if logCfg.Level != "info" || opts.publisher != "none" {
		t.Errorf("unexpected defaults: level=%s publisher=%s", logCfg.Level, opts.publisher)
	}
}

func TestParseFlags_StrategyList(t *testing.T) {
	opts, _, err := parseFlags([]string{"-strategy", "node-mcs,mutex", "-workers", "2", "-brokers", "a:1,b:2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.strategies) != 2 || opts.strategies[0] != lock.NodeMCS || opts.strategies[1] != lock.NodeMutex {
		t.Errorf("unexpected strategies %v", opts.strategies)
	}
	if opts.cfg.Workers != 2 || len(opts.brokers) != 2 {
		t.Errorf("unexpected parse: workers=%d brokers=%v", opts.cfg.Workers, opts.brokers)
	}
}

func TestParseFlags_Rejects(t *testing.T) {
	if _, _, err := parseFlags([]string{"-strategy", "lock-free"}); err == nil {
		t.Error("expected unknown strategy error")
	}
	if _, _, err := parseFlags([]string{"-workers", "0"}); err == nil {
		t.Error("expected invalid config error")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	opts, _, err := parseFlags([]string{
		"-workers", "4",
		"-ops", "500",
		"-range", "16",
		"-replay-ops", "300",
		"-fairness", "4",
		"-trace-dir", t.TempDir(),
		"-results-dir", t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), opts); err != nil {
		t.Fatalf("run: %v", err)
	}

	store, err := results.Open(opts.resultsDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	n := 0
	_ = store.ScanByState(results.StateNew, func(e results.Entry) error {
		if !e.Report.Fields["ok"].GetBoolValue() {
			t.Errorf("run %d failed: %v", e.RunID, e.Report)
		}
		n++
		return nil
	})
	if n != len(lock.Strategies()) {
		t.Errorf("expected %d stored reports, got %d", len(lock.Strategies()), n)
	}
}
