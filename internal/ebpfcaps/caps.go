// Package ebpfcaps detects whether the host can load and attach the
// kernel component: BTF/CO-RE availability, kernel version, and the
// kconfig options the struct_ops scheduler attach path depends on.
package ebpfcaps

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Info describes BTF/CO-RE and struct_ops-sched_ext availability on the
// running host.
type Info struct {
	BTFAvailable  bool
	VmlinuxPath   string
	KernelVersion string
	MajorVersion  int
	MinorVersion  int
	CORESupport   bool // kernel >= 5.8
	SchedExtReady bool // kernel >= 6.12, where sched_ext landed upstream
}

// Detect inspects the running host.
func Detect() *Info {
	info := &Info{}
	info.KernelVersion = readKernelVersion()
	info.MajorVersion, info.MinorVersion = parseKernelVersion(info.KernelVersion)

	const btfPath = "/sys/kernel/btf/vmlinux"
	if _, err := os.Stat(btfPath); err == nil {
		info.BTFAvailable = true
		info.VmlinuxPath = btfPath
	}

	if info.MajorVersion > 5 || (info.MajorVersion == 5 && info.MinorVersion >= 8) {
		info.CORESupport = true
	}
	if info.MajorVersion > 6 || (info.MajorVersion == 6 && info.MinorVersion >= 12) {
		info.SchedExtReady = true
	}

	return info
}

// wantedKConfigs are the kconfig knobs the struct_ops sched_ext attach
// path needs turned on; their lowercased names are the keys Capabilities
// returns.
var wantedKConfigs = []string{
	"CONFIG_BPF",
	"CONFIG_BPF_SYSCALL",
	"CONFIG_BPF_JIT",
	"CONFIG_DEBUG_INFO_BTF",
	"CONFIG_SCHED_CLASS_EXT",
}

// Capabilities reports the individual kernel features the kernel
// component's attach path depends on.
func Capabilities() map[string]bool {
	caps := map[string]bool{
		"bpf_syscall": pathExists("/proc/sys/kernel/unprivileged_bpf_disabled"),
		"btf_vmlinux": pathExists("/sys/kernel/btf/vmlinux"),
		"bpffs":       pathExists("/sys/fs/bpf"),
		"sched_ext":   pathExists("/sys/kernel/sched_ext"),
	}
	enabled := loadKConfig()
	for _, opt := range wantedKConfigs {
		caps[strings.ToLower(opt)] = enabled[opt]
	}
	return caps
}

// Ready reports whether the host meets the minimum bar to attempt loading
// the kernel component at all: BTF/CO-RE support plus a kernel new enough
// to carry sched_ext.
func Ready(info *Info) bool {
	return info.BTFAvailable && info.CORESupport && info.SchedExtReady
}

// readKernelVersion returns the third whitespace-separated field of
// /proc/version, e.g. "6.12.0-generic" out of "Linux version 6.12.0-generic ...".
func readKernelVersion() string {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// parseKernelVersion splits a uname-style release string into its major
// and minor numbers, tolerating a distro suffix on the minor component
// (e.g. "5.8.0-generic" -> (5, 8)).
func parseKernelVersion(release string) (major, minor int) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0
	}
	major, _ = strconv.Atoi(parts[0])
	minorField := parts[1]
	if cut := strings.IndexAny(minorField, "-+~"); cut >= 0 {
		minorField = minorField[:cut]
	}
	minor, _ = strconv.Atoi(minorField)
	return major, minor
}

// loadKConfig finds the running kernel's config (either the compressed
// /proc/config.gz or the /boot/config-<release> text file) and returns
// which of its options are set to "y" or "m". A missing or unreadable
// config file just yields an empty map, so callers see every capability
// as unset rather than erroring.
func loadKConfig() map[string]bool {
	enabled := make(map[string]bool)
	for _, path := range kconfigCandidates() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.HasSuffix(path, ".gz") {
			zr, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				continue
			}
			data, err = io.ReadAll(zr)
			if err != nil {
				continue
			}
		}
		scanKConfig(data, enabled)
		break
	}
	return enabled
}

func kconfigCandidates() []string {
	release := strings.TrimSpace(readFileOrEmpty("/proc/sys/kernel/osrelease"))
	return []string{
		filepath.Join("/boot", "config-"+release),
		"/proc/config.gz",
	}
}

func scanKConfig(data []byte, enabled map[string]bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		enabled[key] = val == "y" || val == "m"
	}
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
