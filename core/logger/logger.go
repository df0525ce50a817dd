package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type format int

const (
	formatText format = iota
	formatJSON
)

type config struct {
	level  slog.Level
	format format
	output io.Writer
	attrs  []slog.Attr
}

// Option configures a logger built by New.
type Option func(*config)

// New builds a slog.Logger. Without options it writes info-level text to stdout.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		format: formatText,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}

	var h slog.Handler
	switch cfg.format {
	case formatJSON:
		h = slog.NewJSONHandler(cfg.output, handlerOpts)
	default:
		h = slog.NewTextHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		h = h.WithAttrs(cfg.attrs)
	}

	return slog.New(h)
}

// Nop returns a logger that discards everything. Library defaults use it.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the destination writer. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithJSONFormatter switches to JSON output.
func WithJSONFormatter() Option {
	return func(c *config) {
		c.format = formatJSON
	}
}

// WithTextFormatter switches to logfmt-style text output.
func WithTextFormatter() Option {
	return func(c *config) {
		c.format = formatText
	}
}

// WithAttr attaches attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithDevelopment configures text output at debug level tagged with the service name.
func WithDevelopment(service string) Option {
	return func(c *config) {
		c.level = slog.LevelDebug
		c.format = formatText
		c.attrs = append(c.attrs, slog.String("service", service), slog.String("env", "development"))
	}
}

// WithProduction configures JSON output at info level tagged with the service name.
func WithProduction(service string) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		c.format = formatJSON
		c.attrs = append(c.attrs, slog.String("service", service), slog.String("env", "production"))
	}
}

// ParseLevel maps debug, info, warn/warning and error to slog levels.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
