// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU/NUMA affinity. Platform-specific
// implementations live in separate files (affinity_linux.go,
// affinity_windows.go, affinity_stub.go) guarded by build tags, so a
// dispatcher worker pinning a BusySpin/Yielding goroutine never has to know
// which platform it is running on.

package affinity

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// SetAffinity pins the current OS thread to a given logical CPU/core on
// supported platforms. On unsupported platforms it returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// PinCurrentGoroutine locks the calling goroutine to its current OS thread
// and pins that thread to cpuID, optionally binding it to numaNode where the
// platform supports NUMA. Used by every dispatch worker whose Config.NUMANode
// is >= 0, whatever its wait policy, so the worker does not migrate across
// cores. numaNode < 0 skips NUMA binding.
func PinCurrentGoroutine(numaNode, cpuID int) {
	runtime.LockOSThread()
	if err := pinCurrentThreadPlatform(numaNode, cpuID); err != nil {
		// Degrade gracefully: an unpinned worker is still correct, only
		// less predictable under load. See spec §9 (policy, not
		// correctness).
		logAffinityWarning(cpuID, err)
	}
}

// UnpinCurrentGoroutine releases the OS thread lock taken by
// PinCurrentGoroutine. Affinity itself is not reset; the thread is about to
// be retired (worker goroutine exit) or repinned by the next caller.
func UnpinCurrentGoroutine() {
	runtime.UnlockOSThread()
}

func logAffinityWarning(cpuID int, err error) {
	logrus.WithError(err).WithField("cpu", cpuID).Debug("affinity: pin failed, continuing unpinned")
}
