// Package timing measures how long a computation takes, either on the
// monotonic wall clock or on the process CPU clock.
//
// The two are not interchangeable: wall time includes preemption and
// scheduling delays, CPU time excludes them but adds up the time spent by
// every goroutine of the process.
package timing

import (
	"errors"
	"fmt"
	"time"
)

// ErrClockUnsupported is returned by the CPU clock on platforms where the
// process CPU time can not be read.
var ErrClockUnsupported = errors.New("process CPU clock not supported on this platform")

const (
	// WallClockName is the name of the monotonic wall clock.
	WallClockName = "wall"
	// CPUClockName is the name of the process CPU clock.
	CPUClockName = "cpu"
)

// Reading is an opaque clock reading.
type Reading struct {
	wall time.Time
	cpu  time.Duration
}

// Clock is a time source for measuring elapsed durations.
type Clock interface {
	// Name returns the name used to select the clock on the command line.
	Name() string
	// Now returns the current reading of the clock.
	Now() (Reading, error)
	// Since returns the time elapsed since start.
	Since(start Reading) (time.Duration, error)
}

// Wall is the monotonic wall clock.
var Wall Clock = wallClock{}

// CPU is the process CPU clock, user plus system time.
var CPU Clock = cpuClock{}

// ParseClock returns the clock with the given name.
func ParseClock(name string) (Clock, error) {
	switch name {
	case "", WallClockName:
		return Wall, nil
	case CPUClockName:
		return CPU, nil
	}
	return nil, fmt.Errorf("unknown clock %q (must be %q or %q)", name, WallClockName, CPUClockName)
}

type wallClock struct{}

func (wallClock) Name() string { return WallClockName }

func (wallClock) Now() (Reading, error) {
	return Reading{wall: time.Now()}, nil
}

func (wallClock) Since(start Reading) (time.Duration, error) {
	return time.Since(start.wall), nil
}

type cpuClock struct{}

func (cpuClock) Name() string { return CPUClockName }

func (cpuClock) Now() (Reading, error) {
	d, err := processCPUTime()
	if err != nil {
		return Reading{}, err
	}
	return Reading{cpu: d}, nil
}

func (cpuClock) Since(start Reading) (time.Duration, error) {
	d, err := processCPUTime()
	if err != nil {
		return 0, err
	}
	return d - start.cpu, nil
}

// Measure runs fn and returns how long it took according to clock. The
// clock is read immediately before and immediately after fn.
func Measure(clock Clock, fn func()) (time.Duration, error) {
	start, err := clock.Now()
	if err != nil {
		return 0, err
	}
	fn()
	return clock.Since(start)
}
