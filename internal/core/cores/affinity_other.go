//go:build !linux

package cores

import "echo_nexus/internal/shared/errors"

// AffinityCounter 在非Linux系统上的存根实现
type AffinityCounter struct{}

func (AffinityCounter) Count() (int, error) {
	return 0, errors.NewError(errors.KindDetection, "affinity detection is not supported on this platform")
}
