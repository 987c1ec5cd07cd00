package loadbalance

import "testing"

func TestLoadIndexFindFirstCandidateDownSkipsMigrated(t *testing.T) {
	var idx loadIndex
	a := &TaskInfo{PID: 1, DomMask: 0b11}
	b := &TaskInfo{PID: 2, DomMask: 0b11, Migrated: true}
	c := &TaskInfo{PID: 3, DomMask: 0b11}
	idx.Insert(10, a)
	idx.Insert(20, b)
	idx.Insert(30, c)

	// Scanning down from 25 should skip the migrated task at 20 and land
	// on the task at 10.
	load, task := idx.findFirstCandidateDown(25, 1)
	if task != a || load != 10 {
		t.Fatalf("got task=%v load=%v, want a/10", task, load)
	}
}

func TestLoadIndexFindFirstCandidateUpSkipsIncompatibleDomMask(t *testing.T) {
	var idx loadIndex
	incompatible := &TaskInfo{PID: 1, DomMask: 0b001} // can't run in dom 1
	compatible := &TaskInfo{PID: 2, DomMask: 0b010}
	idx.Insert(10, incompatible)
	idx.Insert(20, compatible)

	load, task := idx.findFirstCandidateUp(5, 1)
	if task != compatible || load != 20 {
		t.Fatalf("got task=%v load=%v, want compatible/20", task, load)
	}
}

func TestLoadIndexNoCandidateReturnsNil(t *testing.T) {
	var idx loadIndex
	idx.Insert(10, &TaskInfo{PID: 1, DomMask: 0b1, Migrated: true})

	if _, task := idx.findFirstCandidateDown(10, 0); task != nil {
		t.Fatalf("expected nil, got %v", task)
	}
	if _, task := idx.findFirstCandidateUp(10, 0); task != nil {
		t.Fatalf("expected nil, got %v", task)
	}
}

func TestLoadIndexDuplicateLoadsPreserveInsertionOrder(t *testing.T) {
	var idx loadIndex
	first := &TaskInfo{PID: 1, DomMask: 0b11}
	second := &TaskInfo{PID: 2, DomMask: 0b11}
	idx.Insert(5.0, first)
	idx.Insert(5.0, second)

	load, task := idx.findFirstCandidateUp(5.0, 1)
	if task != first || load != 5.0 {
		t.Fatalf("got task=%v, want first inserted task at equal load", task)
	}
}
