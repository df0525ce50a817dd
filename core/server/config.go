package server

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// AcceptPolicy decides what the accept loop does after a failed accept.
type AcceptPolicy string

const (
	// AcceptPolicyStop ends the accept loop on the first accept error.
	AcceptPolicyStop AcceptPolicy = "stop"

	// AcceptPolicyRetry retries temporary accept errors with exponential
	// backoff and stops only on permanent ones.
	AcceptPolicyRetry AcceptPolicy = "retry"
)

// UnmarshalText lets env and flag parsers decode the policy.
func (p *AcceptPolicy) UnmarshalText(text []byte) error {
	switch v := AcceptPolicy(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case "", AcceptPolicyStop:
		*p = AcceptPolicyStop
	case AcceptPolicyRetry:
		*p = v
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAcceptPolicy, string(text))
	}
	return nil
}

// Config holds server configuration with environment variable support.
// Treat it as immutable once passed to NewFromConfig.
type Config struct {
	// Bind address and port
	Address string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Port    uint16 `env:"SERVER_PORT" envDefault:"8080"`

	// Worker pool size, clamped to at least 1. The server never changes
	// process state; the binary applies it as GOMAXPROCS.
	Workers int `env:"SERVER_WORKERS" envDefault:"1"`

	// Deadline for one request/response exchange
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"1s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// Pending connection queue length; 0 uses the system maximum
	Backlog int `env:"SERVER_BACKLOG" envDefault:"0"`

	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" envDefault:"65536"`

	// Maximum concurrently open sessions; 0 means unlimited
	MaxSessions int `env:"SERVER_MAX_SESSIONS" envDefault:"0"`

	AcceptPolicy AcceptPolicy `env:"SERVER_ACCEPT_POLICY" envDefault:"stop"`

	// Connections accepted per peer IP within PeerConnWindow; 0 disables
	PeerConnLimit  int           `env:"SERVER_PEER_CONN_LIMIT" envDefault:"0"`
	PeerConnWindow time.Duration `env:"SERVER_PEER_CONN_WINDOW" envDefault:"1s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:         DefaultAddress,
		Port:            DefaultPort,
		Workers:         DefaultWorkers,
		ReadTimeout:     DefaultReadTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		AcceptPolicy:    AcceptPolicyStop,
		PeerConnWindow:  DefaultPeerConnWindow,
	}
}

// Validate checks the bind address and accept policy.
func (c Config) Validate() error {
	if _, err := c.AddrPort(); err != nil {
		return err
	}
	switch c.AcceptPolicy {
	case "", AcceptPolicyStop, AcceptPolicyRetry:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAcceptPolicy, c.AcceptPolicy)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative, got %d", c.MaxSessions)
	}
	if c.PeerConnLimit < 0 {
		return fmt.Errorf("peer connection limit must not be negative, got %d", c.PeerConnLimit)
	}
	return nil
}

// AddrPort returns the parsed bind endpoint.
func (c Config) AddrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(c.Address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, c.Address, err)
	}
	return netip.AddrPortFrom(addr, c.Port), nil
}

// withDefaults fills zero values and clamps the worker count.
func (c Config) withDefaults() Config {
	c.Workers = ClampWorkers(c.Workers)
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.AcceptPolicy == "" {
		c.AcceptPolicy = AcceptPolicyStop
	}
	if c.MaxSessions < 0 {
		c.MaxSessions = 0
	}
	if c.PeerConnLimit < 0 {
		c.PeerConnLimit = 0
	}
	if c.PeerConnWindow <= 0 {
		c.PeerConnWindow = DefaultPeerConnWindow
	}
	return c
}

// ParsePort parses a decimal TCP port.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidPort, s, err)
	}
	return uint16(n), nil
}

// ParseWorkers parses a decimal worker count and clamps it to at least 1.
func ParseWorkers(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidWorkers, s, err)
	}
	return ClampWorkers(n), nil
}

// ClampWorkers returns n, or 1 when n is below 1.
func ClampWorkers(n int) int {
	return max(n, 1)
}
