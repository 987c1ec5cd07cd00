// Package kernmap is the gateway between domlb and the kernel component's
// shared maps: the per-task observation table, the directive table the
// planner publishes migrations to, and the per-CPU statistics table.
package kernmap

import "github.com/kestrel-sched/domlb/internal/loadbalance"

// StatIndex and NrStats are re-exported from loadbalance, which owns the
// canonical counter ordering since that's where reporting consumes it;
// kernmap only needs the same ordering to index the stats map correctly.
type StatIndex = loadbalance.StatIndex

const (
	StatWakeSync       = loadbalance.StatWakeSync
	StatPrevIdle       = loadbalance.StatPrevIdle
	StatPinned         = loadbalance.StatPinned
	StatDirectDispatch = loadbalance.StatDirectDispatch
	StatDSQDispatch    = loadbalance.StatDSQDispatch
	StatGreedy         = loadbalance.StatGreedy
	StatLastTask       = loadbalance.StatLastTask
	StatLoadBalance    = loadbalance.StatLoadBalance
	StatTaskGetErr     = loadbalance.StatTaskGetErr
	NrStats            = loadbalance.NrStats
)

// Config is the read-only configuration area rewritten into the kernel
// component's rodata before it's loaded.
type Config struct {
	SliceNS         uint64
	NrCPUs          uint32
	NrDoms          uint32
	KthreadsLocal   bool
	FifoSched       bool
	SwitchPartial   bool
	GreedyThreshold uint32
}
