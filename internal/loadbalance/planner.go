package loadbalance

import "sort"

// Plan runs the greedy migration planner once over a tick's load index and
// imbalance set, returning every migration it decided to execute. byDomain
// is consumed: task Migrated flags are set in place as the plan is built.
// imb is copied and left unchanged.
func Plan(domLoads []float64, byDomain []loadIndex, imb ImbalanceSet) []Migration {
	var migrations []Migration

	toPush := append([]Imbalance(nil), imb.ToPush...)
	toPull := append([]Imbalance(nil), imb.ToPull...)
	sort.Slice(toPush, func(i, j int) bool { return toPush[i].Delta > toPush[j].Delta })

	for len(toPush) > 0 {
		push := toPush[0]
		toPush = toPush[1:]

		pushDom := push.DomID
		toPushAmt := push.Delta
		pushMax := domLoads[pushDom] * PushMaxRatio
		var pushed float64

		for {
			lastPushed := pushed

			sort.Slice(toPull, func(i, j int) bool { return toPull[i].Delta > toPull[j].Delta })
			for i := range toPull {
				pullDom := toPull[i].DomID
				toPullAmt := toPull[i].Delta

				task, load, ok := pickVictim(&byDomain[pushDom], pushDom, toPushAmt, pullDom, toPullAmt)
				if !ok {
					continue
				}

				task.Migrated = true
				toPushAmt -= load
				toPull[i].Delta -= load
				pushed += load

				migrations = append(migrations, Migration{
					PID:     task.PID,
					FromDom: pushDom,
					ToDom:   pullDom,
					Load:    load,
				})
				break
			}

			if pushed == lastPushed || pushed >= pushMax {
				break
			}
		}
	}

	return migrations
}

// pickVictim picks the task in pushDom's load index whose load is closest
// to the amount that would fully equalize (push_dom, pull_dom), preferring
// whichever of the floor/ceil candidates yields the smaller resulting
// imbalance. It returns ok=false if no migratable candidate exists, or the
// best candidate wouldn't improve the imbalance by at least
// ReductionMinRatio.
func pickVictim(idx *loadIndex, pushDom uint32, toPush float64, pullDom uint32, toPull float64) (*TaskInfo, float64, bool) {
	toXfer := toPull
	if toPush < toXfer {
		toXfer = toPush
	}

	calcNewImbal := func(xfer float64) float64 {
		return abs(toPush-xfer) + abs(toPull-xfer)
	}

	downLoad, downTask := idx.findFirstCandidateDown(toXfer, pullDom)
	upLoad, upTask := idx.findFirstCandidateUp(toXfer, pullDom)

	var load float64
	var task *TaskInfo
	switch {
	case downTask == nil && upTask == nil:
		return nil, 0, false
	case downTask == nil:
		load, task = upLoad, upTask
	case upTask == nil:
		load, task = downLoad, downTask
	default:
		newImbalDown := calcNewImbal(downLoad)
		newImbalUp := calcNewImbal(upLoad)
		if newImbalDown <= newImbalUp {
			load, task = downLoad, downTask
		} else {
			load, task = upLoad, upTask
		}
	}

	newImbal := calcNewImbal(load)
	oldImbal := toPush + toPull
	if oldImbal*(1.0-ReductionMinRatio) < newImbal {
		return nil, 0, false
	}

	return task, load, true
}
