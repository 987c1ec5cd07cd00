package loadbalance

import "sort"

// loadIndex is a multimap from load value to TaskInfo, kept sorted
// ascending by load so pickVictim can scan outward from a pivot value in
// both directions. Duplicate load values are permitted and ordered by
// insertion (stable sort.Search-based insertion), which also serves as
// the documented tiebreak for tasks with identical load: earlier-seen
// tasks (by task-table iteration order) sort first. No library in the
// available ecosystem provides an ordered multimap with duplicate-key
// neighbor queries, so this is a small hand-rolled sorted slice rather
// than a tree.
type loadIndex struct {
	entries []loadIndexEntry
}

type loadIndexEntry struct {
	load float64
	task *TaskInfo
}

// Insert adds a task at the given load, preserving ascending order.
func (idx *loadIndex) Insert(load float64, task *TaskInfo) {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].load > load })
	idx.entries = append(idx.entries, loadIndexEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = loadIndexEntry{load: load, task: task}
}

// Len reports the number of tasks currently indexed.
func (idx *loadIndex) Len() int { return len(idx.entries) }

// floorIndex returns the index of the last entry with load <= pivot, or
// -1 if none exists.
func (idx *loadIndex) floorIndex(pivot float64) int {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].load > pivot })
	return i - 1
}

// ceilIndex returns the index of the first entry with load >= pivot, or
// len(entries) if none exists.
func (idx *loadIndex) ceilIndex(pivot float64) int {
	return sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].load >= pivot })
}

// findFirstCandidateDown scans from the floor of pivot downward
// (descending load), returning the first task that isn't already migrated
// and can run in pullDom.
func (idx *loadIndex) findFirstCandidateDown(pivot float64, pullDom uint32) (float64, *TaskInfo) {
	for i := idx.floorIndex(pivot); i >= 0; i-- {
		e := idx.entries[i]
		if isCandidate(e.task, pullDom) {
			return e.load, e.task
		}
	}
	return 0, nil
}

// findFirstCandidateUp scans from the ceil of pivot upward (ascending
// load), returning the first task that isn't already migrated and can
// run in pullDom.
func (idx *loadIndex) findFirstCandidateUp(pivot float64, pullDom uint32) (float64, *TaskInfo) {
	for i := idx.ceilIndex(pivot); i < len(idx.entries); i++ {
		e := idx.entries[i]
		if isCandidate(e.task, pullDom) {
			return e.load, e.task
		}
	}
	return 0, nil
}

func isCandidate(task *TaskInfo, pullDom uint32) bool {
	if task.Migrated {
		return false
	}
	return task.DomMask&(1<<pullDom) != 0
}
