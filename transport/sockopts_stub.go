//go:build !linux && !windows
// +build !linux,!windows

// File: transport/sockopts_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub socket-option application for platforms without a dedicated
// implementation; the connector still connects, just without
// SO_REUSEADDR applied.

package transport

import "syscall"

func applySocketOptions(_, _ string, _ syscall.RawConn) error {
	return nil
}

func nativeAvailable() bool {
	return false
}
