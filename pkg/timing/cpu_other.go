//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !solaris && !windows
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!dragonfly,!solaris,!windows

package timing

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrClockUnsupported
}
