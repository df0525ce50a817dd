package logger

import (
	"log/slog"
	"net"
	"time"
)

// Attribute helpers return an empty Attr for nil or empty input, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks. slog drops empty attrs.

// Group creates a group of attributes under a single key.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// ============================================================================
// Errors
// ============================================================================

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Stage names the step of a multi-step operation that failed.
func Stage(stage string) slog.Attr {
	if stage == "" {
		return slog.Attr{}
	}
	return slog.String("stage", stage)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed reports the time passed since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Timeout creates an attribute for a configured timeout.
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration("timeout", d)
}

// ============================================================================
// Connections and sessions
// ============================================================================

// SessionID identifies one accepted connection's session.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// RemoteAddr creates an attribute for a peer address.
func RemoteAddr(addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.Attr{}
	}
	return slog.String("remote_addr", addr.String())
}

// LocalAddr creates an attribute for a bound local address.
func LocalAddr(addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.Attr{}
	}
	return slog.String("local_addr", addr.String())
}

// Requests counts the exchanges served on one connection.
func Requests(n int) slog.Attr {
	return slog.Int("requests", n)
}

// ============================================================================
// HTTP
// ============================================================================

// Method creates an attribute for HTTP methods.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path creates an attribute for request targets.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode creates an attribute for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Cookie records one cookie parameter as a "cookie" group.
func Cookie(name, value string) slog.Attr {
	return Group("cookie", slog.String("name", name), slog.String("value", value))
}

// ============================================================================
// Generic metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event creates an attribute for event names.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Version creates an attribute for version information.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Key creates a generic key-value attribute.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

// RetryCount creates an attribute for retry attempts.
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}
