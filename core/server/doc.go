// Package server implements a concurrent TCP listener that serves HTTP/1.1
// requests through a single handler.Handler.
//
// # Architecture
//
// A Listener owns the listening socket. Its accept loop spawns one session
// goroutine per connection and immediately returns to accepting, so a slow
// connection never delays new ones. Each session exclusively owns its
// connection and loops:
//
//	Idle -> ReadingRequest -> Handling -> WritingResponse -> Idle | Closing
//
// Every exchange runs under a fresh deadline (ReadTimeout, one second by
// default). A peer that closes between requests ends the session quietly;
// timeouts, resets and malformed requests end it with a *SessionError that is
// logged and reported, and no response is written. After a response the
// session keeps the connection open unless the response requires closing it.
// Closing half-closes the write side and releases the connection.
//
// The accept loop and every session are goroutines scheduled on the runtime's
// pool. Config.Workers records its intended size; the server leaves
// GOMAXPROCS alone and cmd/fasttrack applies it. Sessions share no mutable
// state.
//
// Admission is optional: MaxSessions bounds live sessions (further
// connections wait in the kernel backlog) and PeerConnLimit caps how many
// connections one peer IP may open per PeerConnWindow. Connections over the
// peer limit are closed right after accept.
//
// # Basic Usage
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(srv.Run(ctx, status.New()))
//	return eg.Wait()
//
// # Errors
//
// Socket setup returns *SocketSetupError with the failed Stage (open,
// configure, bind or listen). An accept failure ends the accept loop with a
// *ListenerError under AcceptPolicyStop; AcceptPolicyRetry retries temporary
// failures with exponential backoff instead. Session failures never leave
// their session. Use errors.Is with ErrSocketSetup, ErrAccept and ErrSession
// to classify them, or WithErrorReporter to observe them.
//
// # Shutdown
//
// Stop closes the listener, lets sessions finish their current exchange and
// waits up to ShutdownTimeout. Remaining sessions are then cancelled, which
// aborts their pending I/O.
package server
