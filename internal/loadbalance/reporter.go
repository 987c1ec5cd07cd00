package loadbalance

import (
	"time"

	"github.com/rs/zerolog"
)

// Reporter logs a per-tick summary in the same two-line-plus-per-domain
// shape the kernel component's own userspace counterpart uses: one line
// of headline counters, one line of dispatch-path percentages, then one
// line per domain's load and pending transfer.
type Reporter struct {
	log zerolog.Logger
}

// NewReporter builds a Reporter against the given logger.
func NewReporter(log zerolog.Logger) *Reporter {
	return &Reporter{log: log}
}

// Report logs one tick's summary. domLoads and imbal must be indexed by
// domain id; imbal entries default to zero for balanced domains. runID is
// attached to every line of the report (headline, dispatch breakdown, one
// line per domain) to correlate them with others from the same controller
// lifetime.
func (r *Reporter) Report(runID string, stats []uint64, cpuBusy float64, processingDur time.Duration, loadAvg float64, domLoads []float64, imbal []float64, nrLBDataErrors uint64) {
	total := stats[StatWakeSync] + stats[StatPrevIdle] + stats[StatPinned] +
		stats[StatDirectDispatch] + stats[StatDSQDispatch] + stats[StatGreedy] +
		stats[StatLastTask]

	r.log.Info().
		Str("run_id", runID).
		Float64("cpu_pct", cpuBusy*100.0).
		Float64("load_avg", loadAvg).
		Uint64("balance_count", stats[StatLoadBalance]).
		Uint64("task_get_err", stats[StatTaskGetErr]).
		Uint64("lb_data_err", nrLBDataErrors).
		Dur("processing", processingDur).
		Msg("tick")

	pct := func(idx StatIndex) float64 {
		if total == 0 {
			return 0
		}
		return float64(stats[idx]) / float64(total) * 100.0
	}
	r.log.Info().
		Str("run_id", runID).
		Uint64("total", total).
		Float64("wake_sync_pct", pct(StatWakeSync)).
		Float64("prev_idle_pct", pct(StatPrevIdle)).
		Float64("pinned_pct", pct(StatPinned)).
		Float64("direct_pct", pct(StatDirectDispatch)).
		Float64("dsq_pct", pct(StatDSQDispatch)).
		Float64("greedy_pct", pct(StatGreedy)).
		Msg("dispatch breakdown")

	for dom, load := range domLoads {
		var toPull, toPush float64
		if dom < len(imbal) {
			if imbal[dom] < 0 {
				toPull = -imbal[dom]
			} else {
				toPush = imbal[dom]
			}
		}
		r.log.Info().
			Str("run_id", runID).
			Int("dom", dom).
			Float64("load", load).
			Float64("to_pull", toPull).
			Float64("to_push", toPush).
			Msg("domain")
	}
}
