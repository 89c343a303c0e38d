//go:build windows
// +build windows

// File: transport/sockopts_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows socket-option application for ConnectorBootstrap, grounded on
// the teacher's internal/transport/transport_windows_accept.go
// windows.SetsockoptInt usage.

package transport

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// applySocketOptions sets SO_REUSEADDR on the about-to-connect socket.
func applySocketOptions(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// nativeAvailable reports false: there is no portable native-IOCP path
// wired here, so Windows always uses the portable net.Dialer socket
// class (the teacher's own Windows transport goes through raw IOCP only
// for its server-side acceptor, which is out of scope here).
func nativeAvailable() bool {
	return false
}
