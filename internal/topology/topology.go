// Package topology resolves the CPU-to-domain mapping domlb operates
// over, either from explicit --cpumasks or by grouping CPUs that share a
// cache at a given level.
package topology

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/kestrel-sched/domlb/internal/errs"
)

// MAX_DOMS and MAX_CPUS bound the shared kernel/userspace config area;
// they must match the limits baked into the kernel component's rodata.
const (
	MaxDoms = 64
	MaxCPUs = 512
)

// Domain is one scheduling domain: a set of CPUs that share a dispatch
// queue in the kernel component.
type Domain struct {
	ID     uint32
	CPUSet *bitset.BitSet // indexed by CPU id, length NrCPUs
}

// Topology is the resolved CPU/domain layout for the running host.
type Topology struct {
	NrCPUs  uint32
	NrDoms  uint32
	Domains []Domain
	// CPUDom maps a CPU id to its domain id.
	CPUDom []uint32
	// NotFoundCacheIDs counts CPUs whose cache id could not be read during
	// cache-based grouping (0 when built from explicit cpumasks). More than
	// one indicates the fallback-to-cache-0 grouping is probably wrong and
	// callers should log a warning.
	NotFoundCacheIDs int
}

// Resolve builds a Topology either from explicit cpumasks, when non-empty,
// or by grouping CPUs sharing a cache at cacheLevel. nrCPUs is normally
// runtime.NumCPU() or the count of online CPUs; it is threaded in so
// tests can exercise both paths without real hardware.
func Resolve(cpumasks []string, cacheLevel uint32, nrCPUs int) (*Topology, error) {
	if nrCPUs <= 0 {
		return nil, errs.NewConfigError("nr_cpus must be positive, got %d", nrCPUs)
	}
	if nrCPUs > MaxCPUs {
		return nil, errs.NewConfigError("nr_cpus (%d) is greater than MAX_CPUS (%d)", nrCPUs, MaxCPUs)
	}

	if len(cpumasks) > 0 {
		return fromCPUMasks(cpumasks, nrCPUs)
	}
	return fromCache(cacheLevel, nrCPUs)
}

// fromCPUMasks parses one hex cpumask per domain and validates that every
// CPU is covered exactly once.
func fromCPUMasks(cpumasks []string, nrCPUs int) (*Topology, error) {
	if len(cpumasks) > MaxDoms {
		return nil, errs.NewConfigError("number of requested domains (%d) is greater than MAX_DOMS (%d)", len(cpumasks), MaxDoms)
	}

	cpuDom := make([]int, nrCPUs)
	for i := range cpuDom {
		cpuDom[i] = -1
	}
	domains := make([]Domain, len(cpumasks))
	for i := range domains {
		domains[i] = Domain{ID: uint32(i), CPUSet: bitset.New(uint(nrCPUs))}
	}

	for dom, mask := range cpumasks {
		cpus, err := parseCPUMask(mask)
		if err != nil {
			return nil, err
		}
		for _, cpu := range cpus {
			if cpu >= nrCPUs {
				return nil, errs.NewConfigError(
					"found cpu (%d) in cpumask (%s) which is larger than the number of cpus on the machine (%d)",
					cpu, mask, nrCPUs)
			}
			if cpuDom[cpu] != -1 {
				return nil, errs.NewConfigError(
					"found cpu (%d) with domain (%d) but also in cpumask (%s)", cpu, cpuDom[cpu], mask)
			}
			cpuDom[cpu] = dom
			domains[dom].CPUSet.Set(uint(cpu))
		}
	}

	for cpu, dom := range cpuDom {
		if dom < 0 {
			return nil, errs.NewConfigError(
				"cpu %d not assigned to any domain; make sure it is covered by some --cpumasks argument", cpu)
		}
	}

	return &Topology{
		NrCPUs:  uint32(nrCPUs),
		NrDoms:  uint32(len(domains)),
		Domains: domains,
		CPUDom:  toUint32(cpuDom),
	}, nil
}

// parseCPUMask decodes a hex bitmask, accepting an optional "0x" prefix
// and "_" digit-group separators, and returns the set CPU ids.
func parseCPUMask(mask string) ([]int, error) {
	hexStr := strings.ReplaceAll(strings.TrimPrefix(mask, "0x"), "_", "")
	if len(hexStr) == 0 {
		return nil, errs.NewConfigError("empty cpumask")
	}
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}

	raw := make([]byte, len(hexStr)/2)
	for i := 0; i < len(raw); i++ {
		b, err := strconv.ParseUint(hexStr[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, errs.NewConfigError("failed to parse cpumask %q: %v", mask, err)
		}
		raw[i] = byte(b)
	}

	var cpus []int
	for i := 0; i < len(raw); i++ {
		// raw is big-endian as written; the least-significant byte is last.
		v := raw[len(raw)-1-i]
		for v != 0 {
			lsb := trailingZeros8(v)
			v &^= 1 << lsb
			cpus = append(cpus, i*8+lsb)
		}
	}
	return cpus, nil
}

func trailingZeros8(v byte) int {
	for i := 0; i < 8; i++ {
		if v&(1<<i) != 0 {
			return i
		}
	}
	return 8
}

// fromCache groups CPUs sharing a cache id at the given level, reading
// /sys/devices/system/cpu/cpuN/cache/indexLEVEL/id. CPUs whose cache id
// cannot be read are folded into cache id 0; if more than one CPU hits
// this fallback, a warning is logged by the caller (Resolve does not log
// directly so it stays testable without a logger dependency).
func fromCache(level uint32, nrCPUs int) (*Topology, error) {
	cpuToCache := make([]uint32, nrCPUs)
	nrNotFound := 0

	for cpu := 0; cpu < nrCPUs; cpu++ {
		path := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cache/index%d/id", cpu, level)
		data, err := os.ReadFile(path)
		var id uint32
		switch {
		case err == nil:
			v, perr := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
			if perr != nil {
				return nil, errs.NewConfigError("failed to parse %s content %q: %v", path, string(data), perr)
			}
			id = uint32(v)
		case os.IsNotExist(err):
			nrNotFound++
			id = 0
		default:
			return nil, errs.NewConfigError("failed to open %s: %v", path, err)
		}
		cpuToCache[cpu] = id
	}

	domains, cpuDom, err := groupByCacheIDs(cpuToCache)
	if err != nil {
		return nil, err
	}

	return &Topology{
		NrCPUs:           uint32(nrCPUs),
		NrDoms:           uint32(len(domains)),
		Domains:          domains,
		CPUDom:           cpuDom,
		NotFoundCacheIDs: nrNotFound,
	}, nil
}

// groupByCacheIDs assigns consecutive domain ids to the distinct cache ids
// present in cpuToCache, in ascending cache-id order, so that holes in the
// cache id space don't produce holes in the domain id space.
func groupByCacheIDs(cpuToCache []uint32) ([]Domain, []uint32, error) {
	cacheIDSet := map[uint32]struct{}{}
	for _, id := range cpuToCache {
		cacheIDSet[id] = struct{}{}
	}

	sortedCacheIDs := make([]uint32, 0, len(cacheIDSet))
	for id := range cacheIDSet {
		sortedCacheIDs = append(sortedCacheIDs, id)
	}
	sortUint32(sortedCacheIDs)

	cacheToDom := make(map[uint32]uint32, len(sortedCacheIDs))
	for i, id := range sortedCacheIDs {
		cacheToDom[id] = uint32(i)
	}
	nrDoms := uint32(len(sortedCacheIDs))
	if nrDoms > MaxDoms {
		return nil, nil, errs.NewConfigError("total number of domains %d is greater than MAX_DOMS (%d)", nrDoms, MaxDoms)
	}

	nrCPUs := len(cpuToCache)
	domains := make([]Domain, nrDoms)
	for i := range domains {
		domains[i] = Domain{ID: uint32(i), CPUSet: bitset.New(uint(nrCPUs))}
	}
	cpuDom := make([]uint32, nrCPUs)
	for cpu := 0; cpu < nrCPUs; cpu++ {
		dom := cacheToDom[cpuToCache[cpu]]
		domains[dom].CPUSet.Set(uint(cpu))
		cpuDom[cpu] = dom
	}

	return domains, cpuDom, nil
}

func toUint32(in []int) []uint32 {
	out := make([]uint32, len(in))
	for i, v := range in {
		out[i] = uint32(v)
	}
	return out
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
