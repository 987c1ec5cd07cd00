package loadbalance

import (
	"context"
	"testing"

	"github.com/kestrel-sched/domlb/internal/logging"
)

type fakeTaskSource struct{ obs []TaskObservation }

func (f fakeTaskSource) ReadTaskObservations() ([]TaskObservation, []error) { return f.obs, nil }

type fakeStatsSource struct{ stats []uint64 }

func (f fakeStatsSource) ReadStats() ([]uint64, error) { return f.stats, nil }

type fakeCPUBusy struct{ busy float64 }

func (f fakeCPUBusy) Busy() (float64, error) { return f.busy, nil }

func newTestController(obs []TaskObservation, nrDoms uint32, noLoadBalance bool) (*Controller, *fakeDirectiveGateway) {
	gw := newFakeDirectiveGateway()
	c := NewController(
		fakeTaskSource{obs: obs},
		fakeStatsSource{stats: make([]uint64, NrStats)},
		fakeCPUBusy{busy: 0.5},
		gw,
		func() uint64 { return 0 },
		0.5,
		nrDoms,
		noLoadBalance,
		logging.Component("test"),
	)
	return c, gw
}

// balancedThreeTaskObs produces dom0=130 (one pinned task at 100, one
// migratable task at 30) and dom1=70 (one pinned task), matching the
// planner's own unit-tested single-migration scenario: the migratable
// task at dom0 should move to dom1.
func balancedThreeTaskObs() []TaskObservation {
	const period = uint64(1e9)
	return []TaskObservation{
		{PID: 1, DomID: 0, DomMask: 0b01, Weight: 100, RunnableFor: period},
		{PID: 2, DomID: 0, DomMask: 0b11, Weight: 30, RunnableFor: period},
		{PID: 3, DomID: 1, DomMask: 0b10, Weight: 70, RunnableFor: period},
	}
}

func TestControllerTickPublishesPlannedMigrations(t *testing.T) {
	c, gw := newTestController(balancedThreeTaskObs(), 2, false)

	outcome, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(outcome.Migrations) != 1 || outcome.Migrations[0].PID != 2 {
		t.Fatalf("Migrations = %+v, want exactly pid 2 moved dom0 -> dom1", outcome.Migrations)
	}
	if len(gw.directives) != len(outcome.Migrations) {
		t.Fatalf("gateway saw %d directives, want %d", len(gw.directives), len(outcome.Migrations))
	}
}

func TestControllerTickSkipsPlanningWhenNoLoadBalance(t *testing.T) {
	c, gw := newTestController(balancedThreeTaskObs(), 2, true)

	outcome, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(outcome.Migrations) != 0 {
		t.Fatalf("expected no migrations with NoLoadBalance set, got %+v", outcome.Migrations)
	}
	if gw.cleared != 0 {
		t.Fatalf("expected gateway untouched with NoLoadBalance set, cleared=%d", gw.cleared)
	}
}

func TestControllerTickWithNoTasksIsBalanced(t *testing.T) {
	c, _ := newTestController(nil, 2, false)
	outcome, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(outcome.Migrations) != 0 {
		t.Fatalf("expected no migrations with no tasks, got %+v", outcome.Migrations)
	}
}
