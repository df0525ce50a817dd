//go:build !unix

package server

import (
	"context"
	"net"
	"net/netip"
)

// listenSocket falls back to the runtime's listener setup, which performs all
// steps at once; failures are reported as the listen stage.
func listenSocket(ctx context.Context, addr netip.AddrPort, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr.String())
	if err != nil {
		return nil, &SocketSetupError{Stage: StageListen, Addr: addr.String(), Err: err}
	}
	return ln, nil
}
