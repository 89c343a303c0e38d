//go:build linux
// +build linux

// File: transport/sockopts_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux socket-option application for ConnectorBootstrap, grounded on
// the teacher's internal/transport/transport_linux.go unix.SetsockoptInt
// usage.

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applySocketOptions sets SO_REUSEADDR on the about-to-connect socket, as
// required by the bootstrap's documented default options.
func applySocketOptions(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// nativeAvailable reports that the Linux build can use the kernel's
// native epoll-backed netpoller, satisfying "selects the native epoll
// stream class when available and requested."
func nativeAvailable() bool {
	return true
}
