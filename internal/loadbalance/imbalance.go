package loadbalance

import "sort"

// ImbalanceSet splits domains into push (overloaded) and pull
// (underloaded) candidates, both ordered by descending magnitude of
// deviation from the mean so the planner always attacks the worst
// imbalance first.
type ImbalanceSet struct {
	ToPush []Imbalance // descending by Delta
	ToPull []Imbalance // descending by Delta (i.e. by how much is needed)
}

// DetectImbalance classifies each domain's deviation from loadAvg,
// keeping only domains whose |deviation| is non-zero and at least
// HighImbalanceRatio of the mean.
func DetectImbalance(domLoads []float64, loadAvg float64) ImbalanceSet {
	var set ImbalanceSet
	threshold := loadAvg * HighImbalanceRatio
	for dom, load := range domLoads {
		imbal := load - loadAvg
		if abs(imbal) < threshold || imbal == 0 {
			continue
		}
		if imbal > 0 {
			set.ToPush = append(set.ToPush, Imbalance{DomID: uint32(dom), Delta: imbal})
		} else {
			set.ToPull = append(set.ToPull, Imbalance{DomID: uint32(dom), Delta: -imbal})
		}
	}
	sort.Slice(set.ToPush, func(i, j int) bool { return set.ToPush[i].Delta > set.ToPush[j].Delta })
	sort.Slice(set.ToPull, func(i, j int) bool { return set.ToPull[i].Delta > set.ToPull[j].Delta })
	return set
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
