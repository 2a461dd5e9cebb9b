//go:build linux

package cores

import (
	"golang.org/x/sys/unix"

	"echo_nexus/internal/shared/errors"
)

// AffinityCounter counts the CPUs in the calling process' affinity mask.
type AffinityCounter struct{}

func (AffinityCounter) Count() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, errors.NewError(errors.KindDetection, "sched_getaffinity failed").Base(err)
	}
	n := set.Count()
	if n < 1 {
		return 0, errors.NewError(errors.KindDetection, "empty affinity mask")
	}
	return n, nil
}
