//go:build !linux

package commands

import (
	"log/slog"
	"net"

	"github.com/ujwal-p/mgmtbcknd"
)

// acceptLoop runs the portable accept path: each accepted net.Conn is
// handed straight to the sweep-based Reactor, which drives it through
// short-deadline non-blocking reads/writes instead of epoll. Runs until ln
// is closed.
func acceptLoop(ln net.Listener, reg *bcknd.Registry, re *bcknd.Reactor, cfg *bcknd.Config) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Warn("mgmtbckndd: accept failed, stopping accept loop", slog.Any("err", err))
			return
		}
		raw, id := re.Accept(conn, cfg)
		reg.CreateAdapter(id, raw, conn.RemoteAddr().String())
	}
}
