// File: cmd/jupiterbench/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// serve runs a minimal echo endpoint for the bench subcommand to dial.
// It is deliberately outside the core library packages: the
// specification scopes the server-side acceptor pipeline out of the
// client transport/dispatch core, but a self-contained benchmark CLI
// still needs something to dial, the way the teacher's examples/echo
// provides a demo server alongside the library.

package main

import (
	"io"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jupiter-go/jupiter/transport"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a minimal echo endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":18099", "listen address")
}

func runServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	logrus.WithField("addr", addr).Info("jupiterbench: echo endpoint listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			logrus.WithError(err).Warn("jupiterbench: accept failed")
			continue
		}
		go serveConn(conn)
	}
}

func serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		var lenPrefix [transport.FrameLengthSize]byte
		if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
			return
		}
		bodyLen, err := transport.ReadFrameLength(lenPrefix[:])
		if err != nil {
			return
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		env, err := transport.DecodeFrame(body)
		if err != nil {
			logrus.WithError(err).Warn("jupiterbench: malformed frame, closing")
			return
		}

		resp, err := transport.EncodeFrame(env) // echo the envelope back verbatim
		if err != nil {
			return
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}
