package loadbalance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskSource reads the kernel task table for one tick.
type TaskSource interface {
	ReadTaskObservations() ([]TaskObservation, []error)
}

// StatsSource reads and zeroes the kernel component's per-CPU counters.
type StatsSource interface {
	ReadStats() ([]uint64, error)
}

// CPUBusySampler reports host CPU busy fraction since the previous call.
type CPUBusySampler interface {
	Busy() (float64, error)
}

// NowMonoFunc returns the current monotonic time in nanoseconds, the same
// clock base the kernel component stamps task runnable_at with.
type NowMonoFunc func() uint64

// Controller drives one tick: read -> estimate -> detect -> plan ->
// publish -> report. It holds the estimator's cross-tick state and the
// cumulative error counters surfaced in each report.
type Controller struct {
	Tasks     TaskSource
	Stats     StatsSource
	CPU       CPUBusySampler
	Gateway   DirectiveGateway
	NowMono   NowMonoFunc
	Estimator *Estimator
	Reporter  *Reporter

	// RunID identifies this controller instance's lifetime across ticks,
	// so log lines and snapshot files from the same run can be
	// correlated without relying on process start time or PID, which get
	// reused.
	RunID string

	NrDoms        uint32
	NoLoadBalance bool

	lastTick         time.Time
	nrLBDataErrors   uint64
	nrTaskReadErrors uint64
}

// NewController wires a Controller from already-constructed components.
func NewController(tasks TaskSource, stats StatsSource, cpu CPUBusySampler, gw DirectiveGateway, now NowMonoFunc, decayFactor float64, nrDoms uint32, noLoadBalance bool, log zerolog.Logger) *Controller {
	return &Controller{
		Tasks:         tasks,
		Stats:         stats,
		CPU:           cpu,
		Gateway:       gw,
		NowMono:       now,
		Estimator:     NewEstimator(decayFactor),
		Reporter:      NewReporter(log),
		RunID:         uuid.NewString(),
		NrDoms:        nrDoms,
		NoLoadBalance: noLoadBalance,
	}
}

// TickOutcome summarizes one Tick call for callers that want to inspect
// it beyond the logged report (tests, the MCP introspection server).
type TickOutcome struct {
	RunID             string
	Migrations        []Migration
	DomLoads          []float64
	LoadAvg           float64
	Imbalance         ImbalanceSet
	TaskReadErrors    uint64
	LBDataErrorsTotal uint64
}

// Tick runs one full iteration. On the first call there is no previous
// tick, so the period is taken as one second and each task's load comes
// from its whole runnable_for; migrations are planned from that first
// estimate like on any other tick.
func (c *Controller) Tick(ctx context.Context) (TickOutcome, error) {
	now := time.Now()
	period := time.Second
	if !c.lastTick.IsZero() {
		period = now.Sub(c.lastTick)
	}
	c.lastTick = now

	stats, err := c.Stats.ReadStats()
	if err != nil {
		return TickOutcome{}, err
	}

	cpuBusy, err := c.CPU.Busy()
	if err != nil {
		return TickOutcome{}, err
	}

	obs, obsErrs := c.Tasks.ReadTaskObservations()
	c.nrTaskReadErrors += uint64(len(obsErrs))

	result := c.Estimator.Estimate(obs, period, c.NowMono(), c.NrDoms)
	imb := DetectImbalance(result.DomLoads, result.LoadAvg)

	var migrations []Migration
	if !c.NoLoadBalance {
		migrations = Plan(result.DomLoads, result.ByDomain, imb)
		c.nrLBDataErrors += uint64(Publish(ctx, c.Gateway, migrations))
	}

	imbalByDom := make([]float64, c.NrDoms)
	for _, p := range imb.ToPush {
		imbalByDom[p.DomID] = p.Delta
	}
	for _, p := range imb.ToPull {
		imbalByDom[p.DomID] = -p.Delta
	}

	c.Reporter.Report(c.RunID, stats, cpuBusy, time.Since(now), result.LoadAvg, result.DomLoads, imbalByDom, c.nrLBDataErrors)

	return TickOutcome{
		RunID:             c.RunID,
		Migrations:        migrations,
		DomLoads:          result.DomLoads,
		LoadAvg:           result.LoadAvg,
		Imbalance:         imb,
		TaskReadErrors:    c.nrTaskReadErrors,
		LBDataErrorsTotal: c.nrLBDataErrors,
	}, nil
}
