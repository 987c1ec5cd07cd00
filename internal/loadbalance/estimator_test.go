package loadbalance

import (
	"testing"
	"time"
)

func TestEstimatorFirstTickHasNoDecay(t *testing.T) {
	e := NewEstimator(0.5)
	obs := []TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 100, RunnableFor: uint64(time.Second)},
	}
	result := e.Estimate(obs, time.Second, 0, 2)

	// runnable_for == period, not currently runnable: load == weight.
	if result.DomLoads[0] != 100 {
		t.Fatalf("DomLoads[0] = %v, want 100", result.DomLoads[0])
	}
}

func TestEstimatorAppliesDecayOnSecondTick(t *testing.T) {
	e := NewEstimator(0.5)
	period := time.Second

	first := []TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 100, RunnableFor: uint64(period)},
	}
	e.Estimate(first, period, 0, 2)

	// Second tick: runnable_for unchanged (delta=0), so the raw load this
	// tick is 0, decayed against the previous load of 100 at alpha=0.5.
	second := []TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 100, RunnableFor: uint64(period)},
	}
	result := e.Estimate(second, period, 0, 2)

	want := 100.0*0.5 + 0.0*0.5
	if result.DomLoads[0] != want {
		t.Fatalf("DomLoads[0] = %v, want %v", result.DomLoads[0], want)
	}
}

func TestEstimatorClampsToWeight(t *testing.T) {
	e := NewEstimator(0.5)
	period := time.Second
	obs := []TaskObservation{
		// runnable_for far exceeds the period; delta is clamped to period
		// before computing load, and load itself is clamped to weight.
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 50, RunnableFor: uint64(10 * period)},
	}
	result := e.Estimate(obs, period, 0, 1)
	if result.DomLoads[0] != 50 {
		t.Fatalf("DomLoads[0] = %v, want 50 (clamped to weight)", result.DomLoads[0])
	}
}

func TestEstimatorDropsSelfOnlyDomMaskFromLoadIndex(t *testing.T) {
	e := NewEstimator(0.5)
	obs := []TaskObservation{
		// dom_mask equals exactly its own domain bit: not migratable.
		{PID: 1, DomID: 0, DomMask: 0b01, Weight: 10, RunnableFor: 0},
		{PID: 2, DomID: 0, DomMask: 0b11, Weight: 10, RunnableFor: 0},
	}
	result := e.Estimate(obs, time.Second, 0, 2)
	if result.ByDomain[0].Len() != 1 {
		t.Fatalf("ByDomain[0].Len() = %d, want 1 (only the migratable task)", result.ByDomain[0].Len())
	}
}

func TestEstimatorPrunesVanishedPIDsAcrossTicks(t *testing.T) {
	e := NewEstimator(0.5)
	period := time.Second
	e.Estimate([]TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 100, RunnableFor: uint64(period)},
	}, period, 0, 1)

	// pid 1 vanishes; a new pid 2 appears. Its load must be computed fresh,
	// not decayed against pid 1's stale state.
	result := e.Estimate([]TaskObservation{
		{PID: 2, DomID: 0, DomMask: 0b11, Weight: 100, RunnableFor: uint64(period)},
	}, period, 0, 1)

	if result.DomLoads[0] != 100 {
		t.Fatalf("DomLoads[0] = %v, want 100 (fresh load, no decay against pid 1's stale state)", result.DomLoads[0])
	}
	if _, ok := e.prevLoads.Get(1); ok {
		t.Fatalf("pid 1 still tracked after vanishing from the task table")
	}
}

func TestEstimatorAccountsCurrentlyRunnableTask(t *testing.T) {
	e := NewEstimator(0.5)
	period := time.Second
	// runnable_at is exactly one period before "now": the task has been
	// running continuously since then, contributing a full period's worth
	// of runnable time even though runnable_for itself hasn't caught up.
	nowMono := uint64(2 * period)
	obs := []TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b11, Weight: 100, RunnableAt: uint64(period), RunnableFor: 0},
	}
	result := e.Estimate(obs, period, nowMono, 1)
	if result.DomLoads[0] != 100 {
		t.Fatalf("DomLoads[0] = %v, want 100 (full period spent runnable)", result.DomLoads[0])
	}
}
