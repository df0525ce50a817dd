package server

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidAddress      = errors.New("invalid bind address")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidWorkers      = errors.New("invalid worker count")
	ErrInvalidAcceptPolicy = errors.New("invalid accept policy")

	// Lifecycle errors
	ErrServerAlreadyRunning   = errors.New("server is already running")
	ErrListenerInitialized    = errors.New("listener is already initialized")
	ErrListenerNotInitialized = errors.New("listener is not initialized")
	ErrListenerClosed         = errors.New("listener is closed")
	ErrNilHandler             = errors.New("handler is required")
	ErrShutdownTimeout        = errors.New("shutdown timeout exceeded")

	// Error classes matched by the structured errors below
	ErrSocketSetup = errors.New("socket setup failed")
	ErrAccept      = errors.New("accept failed")
	ErrSession     = errors.New("session failed")
	ErrNilResponse = errors.New("handler returned no response")
)

// Stage is a step of listening socket setup.
type Stage string

const (
	StageOpen      Stage = "open"
	StageConfigure Stage = "configure"
	StageBind      Stage = "bind"
	StageListen    Stage = "listen"
)

// SocketSetupError reports which step of socket setup failed. It is fatal
// to startup and never retried.
type SocketSetupError struct {
	Stage Stage
	Addr  string
	Err   error
}

func (e *SocketSetupError) Error() string {
	return fmt.Sprintf("socket %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *SocketSetupError) Unwrap() error { return e.Err }

func (e *SocketSetupError) Is(target error) bool { return target == ErrSocketSetup }

// ListenerError is an accept failure that ended the accept loop.
type ListenerError struct {
	Addr string
	Err  error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("accept on %s: %v", e.Addr, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

func (e *ListenerError) Is(target error) bool { return target == ErrAccept }

// SessionError is a failure scoped to one connection. Op is "read", "write"
// or "handle". It never propagates beyond the session.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func (e *SessionError) Is(target error) bool { return target == ErrSession }
