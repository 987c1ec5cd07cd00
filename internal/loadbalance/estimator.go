package loadbalance

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Estimator turns raw per-task observations into decayed per-task load
// values, carrying state between ticks. It is not safe for concurrent
// use; the controller owns one instance per scheduler run.
type Estimator struct {
	decayFactor float64
	prevLoads   *orderedmap.OrderedMap[int32, TaskLoad]
}

// NewEstimator builds an Estimator with the given EWMA decay factor,
// which must already be validated to lie in [0, 0.99].
func NewEstimator(decayFactor float64) *Estimator {
	return &Estimator{
		decayFactor: decayFactor,
		prevLoads:   orderedmap.New[int32, TaskLoad](),
	}
}

// TickResult is everything the estimator produces for one tick: the new
// per-task load index (by domain), the raw per-domain load totals, and
// the overall mean.
type TickResult struct {
	DomLoads []float64
	LoadAvg  float64
	ByDomain []loadIndex // indexed by dom id, only populated for migratable tasks
}

// Estimate computes decayed load for every observation in obs, given the
// wall-clock period since the previous tick and the host's monotonic-ns
// "now" (nowMono) used to account for tasks that are runnable right now.
// It rebuilds its cross-tick state fresh from obs every call, which also
// prunes tasks that no longer appear in the kernel task table.
func (e *Estimator) Estimate(obs []TaskObservation, period time.Duration, nowMono uint64, nrDoms uint32) TickResult {
	next := orderedmap.New[int32, TaskLoad]()
	byDomain := make([]loadIndex, nrDoms)
	domLoads := make([]float64, nrDoms)
	periodNS := float64(period.Nanoseconds())
	var loadSum float64

	for _, o := range obs {
		delta := o.RunnableFor
		var prevLoad float64
		havePrev := false
		if prev, ok := e.prevLoads.Get(o.PID); ok {
			delta = o.RunnableFor - prev.RunnableFor
			prevLoad = prev.Load
			havePrev = true
		}

		if o.RunnableAt > 0 && o.RunnableAt < nowMono {
			delta += nowMono - o.RunnableAt
		}
		if float64(delta) > periodNS {
			delta = uint64(periodNS)
		}

		thisLoad := clamp(float64(o.Weight)*float64(delta)/periodNS, 0, float64(o.Weight))
		if havePrev {
			thisLoad = prevLoad*e.decayFactor + thisLoad*(1-e.decayFactor)
		}

		next.Set(o.PID, TaskLoad{RunnableFor: o.RunnableFor, Load: thisLoad})

		loadSum += thisLoad
		if int(o.DomID) < len(domLoads) {
			domLoads[o.DomID] += thisLoad
		}

		// A task whose full dom_mask is just its own current domain has
		// nowhere to migrate to and is excluded from the load index.
		if o.DomMask == 1<<o.DomID {
			continue
		}
		byDomain[o.DomID].Insert(thisLoad, &TaskInfo{PID: o.PID, DomMask: o.DomMask})
	}

	e.prevLoads = next

	loadAvg := 0.0
	if nrDoms > 0 {
		loadAvg = loadSum / float64(nrDoms)
	}

	return TickResult{DomLoads: domLoads, LoadAvg: loadAvg, ByDomain: byDomain}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
