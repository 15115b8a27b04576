package harness

import (
	"github.com/cockroachdb/errors"

	"sortlist/domain/lock"
)

const maxValueRange = 1 << 20

var ErrInvalidConfig = errors.New("harness: invalid config")

type Config struct {
	Strategy     lock.Strategy
	Workers      int
	OpsPerWorker int
	// ValueRange bounds values to [0, ValueRange).
	ValueRange int64
	// InsertPct and RemovePct split the workload; the rest are counts.
	InsertPct int
	RemovePct int
	Seed      uint64
	Backoff   lock.Backoff
	NodeLimit int64
}

func DefaultConfig() Config {
	return Config{
		Strategy:     lock.NodeMCS,
		Workers:      8,
		OpsPerWorker: 10_000,
		ValueRange:   256,
		InsertPct:    40,
		RemovePct:    40,
		Seed:         1,
		Backoff:      lock.Backoff{Spins: 16, Yields: 1024},
	}
}

func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return errors.Wrapf(ErrInvalidConfig, "workers must be positive, got %d", c.Workers)
	case c.OpsPerWorker < 0:
		return errors.Wrapf(ErrInvalidConfig, "ops must not be negative, got %d", c.OpsPerWorker)
	case c.ValueRange <= 0 || c.ValueRange > maxValueRange:
		return errors.Wrapf(ErrInvalidConfig, "value range must be in (0, %d], got %d", maxValueRange, c.ValueRange)
	case c.InsertPct < 0 || c.RemovePct < 0 || c.InsertPct+c.RemovePct > 100:
		return errors.Wrapf(ErrInvalidConfig, "bad op mix insert=%d remove=%d", c.InsertPct, c.RemovePct)
	}
	return nil
}
