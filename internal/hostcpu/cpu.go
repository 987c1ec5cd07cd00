// Package hostcpu samples aggregate host CPU busy time from /proc/stat
// between ticks.
package hostcpu

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kestrel-sched/domlb/internal/errs"
)

// Sample is one /proc/stat aggregate-CPU-line reading. All fields must be
// present for a busy% to be computed; a missing field is a hard error
// rather than a zeroed-out metric, since a silently wrong busy% would go
// straight into the per-tick report.
type Sample struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Steal uint64
}

// Reader samples /proc/stat and reports the fraction of CPU time spent
// busy since the previous call.
type Reader struct {
	procRoot string
	prev     Sample
	havePrev bool
}

// NewReader builds a Reader rooted at procRoot, normally "/proc".
func NewReader(procRoot string) *Reader {
	return &Reader{procRoot: procRoot}
}

// Busy reads the current aggregate CPU line and returns the fraction of
// time spent busy since the previous call. The first call establishes the
// baseline and returns 0.
func (r *Reader) Busy() (float64, error) {
	cur, err := readAggregate(r.procRoot)
	if err != nil {
		return 0, err
	}
	if !r.havePrev {
		r.prev = cur
		r.havePrev = true
		return 0, nil
	}

	idle := cur.Idle - r.prev.Idle
	iowait := cur.IOWait - r.prev.IOWait
	busy := (cur.User - r.prev.User) + (cur.System - r.prev.System) + (cur.Nice - r.prev.Nice) +
		(cur.IRQ - r.prev.IRQ) + (cur.SoftIRQ - r.prev.SoftIRQ) + (cur.Steal - r.prev.Steal)
	total := idle + busy + iowait

	r.prev = cur
	if total == 0 {
		return 0, nil
	}
	return float64(busy) / float64(total), nil
}

func readAggregate(procRoot string) (Sample, error) {
	path := filepath.Join(procRoot, "stat")
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, &errs.FatalMapError{Op: "open " + path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 9 || fields[0] != "cpu" {
			continue
		}
		vals := make([]uint64, 8)
		for i := 0; i < 8; i++ {
			v, err := strconv.ParseUint(fields[i+1], 10, 64)
			if err != nil {
				return Sample{}, &errs.FatalMapError{Op: "parse " + path, Err: err}
			}
			vals[i] = v
		}
		return Sample{
			User: vals[0], Nice: vals[1], System: vals[2], Idle: vals[3],
			IOWait: vals[4], IRQ: vals[5], SoftIRQ: vals[6], Steal: vals[7],
		}, nil
	}
	return Sample{}, &errs.FatalMapError{Op: "parse " + path, Err: errNoAggregateLine}
}

var errNoAggregateLine = errNoAggregateLineT{}

type errNoAggregateLineT struct{}

func (errNoAggregateLineT) Error() string { return "no aggregate \"cpu\" line found" }
