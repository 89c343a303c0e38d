// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// EndpointState enumerates the lifecycle of a logical endpoint bound to a
// watchdog: at most one live stream is attached per state transition.
type EndpointState int32

const (
	EndpointIdle EndpointState = iota
	EndpointConnecting
	EndpointConnected
	EndpointReconnecting
	EndpointClosed
)

func (s EndpointState) String() string {
	switch s {
	case EndpointIdle:
		return "idle"
	case EndpointConnecting:
		return "connecting"
	case EndpointConnected:
		return "connected"
	case EndpointReconnecting:
		return "reconnecting"
	case EndpointClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a non-blocking dispatch attempt.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
)

func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "rejected"
}

// ServiceInfo exposes descriptive build- and runtime info for external tools.
type ServiceInfo struct {
	Name      string
	Version   string
	Build     string
	StartedAt time.Time
}

// DispatcherMetrics is a point-in-time snapshot of dispatcher/reserve-pool
// counters, consumed by the metrics reporter and exposed for diagnostics.
type DispatcherMetrics struct {
	RingCapacity     int
	RingLen          int
	NumWorkers       int
	Accepted         uint64
	Rejected         uint64
	ReserveActive    int
	ReserveAccepted  uint64
	ReserveRejected  uint64
}
