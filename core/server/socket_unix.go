//go:build unix

package server

import (
	"context"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"
)

// listenSocket creates the listening socket step by step so a failure names
// the step that failed. The descriptor is closed on any error.
func listenSocket(_ context.Context, addr netip.AddrPort, backlog int) (net.Listener, error) {
	fail := func(stage Stage, fd int, err error) (net.Listener, error) {
		if fd >= 0 {
			_ = unix.Close(fd)
		}
		return nil, &SocketSetupError{Stage: stage, Addr: addr.String(), Err: err}
	}

	sa, family, err := sockaddr(addr)
	if err != nil {
		return fail(StageOpen, -1, err)
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return fail(StageOpen, -1, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(StageConfigure, fd, os.NewSyscallError("setsockopt", err))
	}

	if err := unix.Bind(fd, sa); err != nil {
		return fail(StageBind, fd, os.NewSyscallError("bind", err))
	}

	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail(StageListen, fd, os.NewSyscallError("listen", err))
	}

	// FileListener dups the descriptor into the runtime poller.
	f := os.NewFile(uintptr(fd), "tcp:"+addr.String())
	ln, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, &SocketSetupError{Stage: StageListen, Addr: addr.String(), Err: err}
	}
	return ln, nil
}

func sockaddr(addr netip.AddrPort) (unix.Sockaddr, int, error) {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.Unmap().As4()}, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		ifi, err := net.InterfaceByName(zone)
		if err != nil {
			return nil, 0, err
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, unix.AF_INET6, nil
}
