package progress

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock returns a monotonically non-decreasing duration.
type Clock func() time.Duration

var processStart = time.Now()

// ProcessCPUTime returns the CPU time consumed by the process. When the CPU
// clock is unavailable it falls back to wall time since start.
func ProcessCPUTime() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_PROCESS_CPUTIME_ID, &ts); err != nil {
		return time.Since(processStart)
	}
	return time.Duration(ts.Nano())
}
