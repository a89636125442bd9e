//go:build linux

package commands

import (
	"log/slog"
	"net"

	"golang.org/x/sys/unix"

	"github.com/ujwal-p/mgmtbcknd"
)

// acceptLoop runs the Linux accept path: each accepted *net.TCPConn is
// handed to the epoll Reactor by raw file descriptor, the same
// SyscallConn-to-fd extraction dance the teacher's aznet driver avoids
// only because it never needs a bare fd (it drives everything through
// net.Conn). Runs until ln is closed.
func acceptLoop(ln net.Listener, reg *bcknd.Registry, re *bcknd.Reactor, cfg *bcknd.Config) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Warn("mgmtbckndd: accept failed, stopping accept loop", slog.Any("err", err))
			return
		}
		tcp, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		sc, err := tcp.SyscallConn()
		if err != nil {
			slog.Warn("mgmtbckndd: SyscallConn failed", slog.Any("err", err))
			tcp.Close()
			continue
		}
		var dupFd int
		var dupErr error
		ctlErr := sc.Control(func(raw uintptr) {
			dupFd, dupErr = unix.Dup(int(raw))
		})
		// Dup the fd and close Go's net.Conn wrapper: the reactor now
		// owns the only live descriptor, so the runtime's internal
		// poller can't race against our direct epoll registration.
		tcp.Close()
		if ctlErr != nil || dupErr != nil {
			slog.Warn("mgmtbckndd: fd extraction failed", slog.Any("err", ctlErr), slog.Any("dupErr", dupErr))
			continue
		}
		fd := dupFd

		raw, err := re.Accept(fd, cfg)
		if err != nil {
			slog.Warn("mgmtbckndd: reactor accept failed", slog.Any("err", err))
			unix.Close(fd)
			continue
		}
		reg.CreateAdapter(fd, raw, conn.RemoteAddr().String())
	}
}
