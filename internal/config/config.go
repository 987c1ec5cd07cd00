// Package config holds the validated runtime options for domlb, populated
// from CLI flags by cmd/domlb and consumed by every other component.
package config

import (
	"time"

	"github.com/kestrel-sched/domlb/internal/errs"
	"github.com/kestrel-sched/domlb/internal/logging"
)

// Options mirrors the CLI flags of spec.md §6 exactly: names, defaults,
// and effects are exhaustive there.
type Options struct {
	SliceUS         uint64        // dispatch slice, written to kernel config
	Interval        time.Duration // tick period
	CacheLevel      uint32        // cache level used to group CPUs into domains
	CPUMasks        []string      // explicit per-domain CPU masks; mutually exclusive with CacheLevel
	GreedyThreshold uint32        // minimum queue depth to permit greedy steals (kernel side)
	LoadDecayFactor float64       // EWMA alpha, clamped to [0, 0.99]
	NoLoadBalance   bool          // skip planner/publisher (diagnostics still emitted)
	KthreadsLocal   bool          // kernel policy hint for kthreads
	FifoSched       bool          // kernel policy hint: FIFO instead of weighted vtime
	Partial         bool          // switch only tasks opted-in via syscall
	Verbose         int           // 0 info, 1 debug, >=2 trace
	BPFObjectPath   string        // compiled kernel-component object to attach
	SnapshotOutPath string        // optional per-tick snapshot dump, empty disables it
}

// DefaultOptions returns an Options populated with the defaults from
// spec.md §6.
func DefaultOptions() Options {
	return Options{
		SliceUS:         20000,
		Interval:        2 * time.Second,
		CacheLevel:      3,
		GreedyThreshold: 4,
		LoadDecayFactor: 0.5,
	}
}

// Validate checks cross-field consistency and returns *errs.ConfigError on
// failure. It does not touch the host filesystem — topology-specific
// checks (mask coverage, cache-id readability) happen in internal/topology
// once nr_cpus is known.
//
// LoadDecayFactor is not rejected out of range: like the original
// controller's opts.load_decay_factor.clamp(0.0, 0.99), an out-of-range
// value is silently usable by clamping it into range, after a warning so
// the operator notices the flag they passed wasn't the one that took
// effect.
func (o *Options) Validate() error {
	if o.Interval <= 0 {
		return errs.NewConfigError("interval must be positive, got %s", o.Interval)
	}
	if o.LoadDecayFactor < 0 || o.LoadDecayFactor > 0.99 {
		clamped := o.LoadDecayFactor
		if clamped < 0 {
			clamped = 0
		} else if clamped > 0.99 {
			clamped = 0.99
		}
		logging.Component("config").Warn().
			Float64("requested", o.LoadDecayFactor).
			Float64("clamped", clamped).
			Msg("load-decay-factor out of range [0, 0.99], clamping")
		o.LoadDecayFactor = clamped
	}
	if o.SliceUS == 0 {
		return errs.NewConfigError("slice-us must be positive")
	}
	return nil
}
