//go:build !linux

package clock

import (
	"runtime"
	"time"
)

// Monotonic uses the runtime's monotonic reading of time.Now.
type Monotonic struct{}

// Elapsed implements Clock.
func (Monotonic) Elapsed() time.Duration {
	return time.Since(processStart)
}

func yield() {
	runtime.Gosched()
}
