// Package loadbalance implements the userspace side of domain load
// balancing: estimating per-task load from kernel-reported runnable time,
// detecting domain imbalance, planning migrations, and publishing the
// resulting directives back to the kernel component.
package loadbalance

// Tunables mirror the fixed ratios of the balancing algorithm. They are
// not exposed as CLI flags because changing them changes the character of
// the balancer rather than a simple runtime preference.
const (
	// HighImbalanceRatio is the fraction of the mean domain load a domain
	// must deviate by before it's considered imbalanced at all.
	HighImbalanceRatio = 0.10

	// ReductionMinRatio is the minimum fractional improvement a candidate
	// migration must achieve; candidates that don't clear this bar are
	// rejected even if they're the best available.
	ReductionMinRatio = 0.10

	// PushMaxRatio bounds how much of a push domain's own load is
	// migrated away in a single tick: the planner stops taking tasks from
	// the domain once the load moved reaches this fraction. The migration
	// that crosses the bound is kept, so the total can exceed it by up to
	// one task's load.
	PushMaxRatio = 0.50
)

// TaskObservation is one task's raw counters as read from the kernel task
// table for the current tick.
type TaskObservation struct {
	PID         int32
	DomID       uint32
	DomMask     uint64
	Weight      uint32
	RunnableAt  uint64 // monotonic ns, 0 if not currently runnable
	RunnableFor uint64 // cumulative runnable ns
}

// TaskLoad is the decayed, per-task load carried across ticks.
type TaskLoad struct {
	RunnableFor uint64
	Load        float64
}

// TaskInfo is a push-domain task eligible for migration consideration,
// indexed by its current load in a per-domain loadIndex.
type TaskInfo struct {
	PID      int32
	DomMask  uint64
	Migrated bool
}

// DomainLoad is one domain's total estimated load for the current tick.
type DomainLoad struct {
	DomID uint32
	Load  float64
}

// Imbalance records how far a domain's load is from the mean; it is only
// populated for domains whose |deviation| clears HighImbalanceRatio.
// Whether the domain is a push or a pull candidate is given by the
// ImbalanceSet list it sits in.
type Imbalance struct {
	DomID uint32
	Delta float64 // magnitude of the deviation, positive for both push and pull
}

// Migration is one planned task move, produced by the planner and
// consumed by the publisher.
type Migration struct {
	PID     int32
	FromDom uint32
	ToDom   uint32
	Load    float64
}

// StatIndex enumerates the counters the kernel component publishes in its
// stats map, in the same order the kernel-side definition uses.
type StatIndex uint32

const (
	StatWakeSync StatIndex = iota
	StatPrevIdle
	StatPinned
	StatDirectDispatch
	StatDSQDispatch
	StatGreedy
	StatLastTask
	StatLoadBalance
	StatTaskGetErr
	NrStats
)
