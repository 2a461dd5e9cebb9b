// Package cores detects how many CPU cores the host offers. The result is
// only used to size the echo worker pool.
package cores

import (
	"bufio"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"unicode/utf8"

	"echo_nexus/internal/shared/errors"
	"echo_nexus/internal/shared/logger"
)

const (
	DetectorAuto     = "auto"
	DetectorCPUInfo  = "cpuinfo"
	DetectorProfiler = "system_profiler"
	DetectorAffinity = "affinity"
)

// Counter reports the number of usable CPU cores.
type Counter interface {
	Count() (int, error)
}

// Matchers holds the patterns used by the file-scan and report-parse
// counters. Build it once with NewMatchers and share it.
type Matchers struct {
	Processor *regexp.Regexp
	CoreField *regexp.Regexp
}

func NewMatchers() *Matchers {
	return &Matchers{
		Processor: regexp.MustCompile(`^processor\s+.+$`),
		CoreField: regexp.MustCompile(`\s*Number of Cores:\s*(\d+)\s*`),
	}
}

// CPUInfoCounter counts "processor" lines in a /proc/cpuinfo style file.
type CPUInfoCounter struct {
	Path    string
	Matcher *regexp.Regexp
}

func (c *CPUInfoCounter) Count() (int, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return 0, errors.NewError(errors.KindDetection, "failed to open cpu info").AtPrefix(c.Path).Base(err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if c.Matcher.MatchString(scanner.Text()) {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.NewError(errors.KindDetection, "failed to read cpu info").AtPrefix(c.Path).Base(err)
	}
	if n == 0 {
		return 0, errors.NewError(errors.KindDetection, "no processor entries found").AtPrefix(c.Path)
	}
	return n, nil
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// ProfilerCounter parses the "Number of Cores" field of
// `system_profiler SPHardwareDataType`.
type ProfilerCounter struct {
	Run     CommandRunner
	Matcher *regexp.Regexp
}

func (c *ProfilerCounter) Count() (int, error) {
	run := c.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run("system_profiler", "SPHardwareDataType")
	if err != nil {
		return 0, errors.NewError(errors.KindDetection, "failed to run system_profiler").Base(err)
	}
	if !utf8.Valid(out) {
		return 0, errors.NewError(errors.KindDetection, "system_profiler output is not valid UTF-8")
	}

	m := c.Matcher.FindStringSubmatch(string(out))
	if len(m) < 2 {
		return 0, errors.NewError(errors.KindDetection, "couldn't find a CPU core number from `system_profiler SPHardwareDataType`")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, errors.NewError(errors.KindDetection, "invalid core number ", strconv.Quote(m[1])).Base(err)
	}
	if n < 1 {
		return 0, errors.NewError(errors.KindDetection, "core number must be positive, got ", n)
	}
	return n, nil
}

// unsupported always fails; used for unknown detectors and platforms.
type unsupported struct {
	reason string
}

func (u unsupported) Count() (int, error) {
	return 0, errors.NewError(errors.KindDetection, u.reason)
}

// New selects a Counter by name. goos is normally runtime.GOOS and only
// matters for DetectorAuto.
func New(kind, goos, cpuInfoPath string, m *Matchers) Counter {
	if kind == DetectorAuto {
		switch goos {
		case "linux":
			kind = DetectorCPUInfo
		case "darwin":
			kind = DetectorProfiler
		default:
			return unsupported{reason: "core detection is not supported on " + goos}
		}
	}

	switch kind {
	case DetectorCPUInfo:
		return &CPUInfoCounter{Path: cpuInfoPath, Matcher: m.Processor}
	case DetectorProfiler:
		return &ProfilerCounter{Run: ExecRunner, Matcher: m.CoreField}
	case DetectorAffinity:
		return AffinityCounter{}
	default:
		return unsupported{reason: "unknown core detector " + strconv.Quote(kind)}
	}
}

// Detect runs c and falls back to def on failure. The failure is logged and
// never fatal.
func Detect(c Counter, def int) int {
	n, err := c.Count()
	if err != nil {
		logger.Error().Err(err).Int("fallback", def).Msg("failed to get CPU cores")
		return def
	}
	return n
}
