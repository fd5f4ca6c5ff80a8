//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris
// +build linux darwin freebsd netbsd openbsd dragonfly solaris

package timing

import (
	"time"

	sys "golang.org/x/sys/unix"
)

func processCPUTime() (time.Duration, error) {
	var ru sys.Rusage
	if err := sys.Getrusage(sys.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
