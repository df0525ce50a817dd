package server

import (
	"time"

	"github.com/dmitrymomot/fasttrack/core/httpcodec"
)

const (
	// DefaultAddress binds every IPv4 interface.
	DefaultAddress = "0.0.0.0"

	// DefaultPort is the default listening port.
	DefaultPort uint16 = 8080

	// DefaultWorkers is the default size of the worker pool.
	DefaultWorkers = 1

	// DefaultReadTimeout bounds one request/response exchange.
	DefaultReadTimeout = time.Second

	// DefaultShutdownTimeout is how long Stop waits for live sessions.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultMaxBodyBytes is the largest request body a session reads.
	DefaultMaxBodyBytes = httpcodec.DefaultMaxBodyBytes

	// DefaultPeerConnWindow is the window PeerConnLimit counts over.
	DefaultPeerConnWindow = time.Second

	// accept retry backoff bounds, used with AcceptPolicyRetry
	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)
