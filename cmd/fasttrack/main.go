// Package main runs the fasttrack status server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/fasttrack/app/status"
	"github.com/dmitrymomot/fasttrack/core/config"
	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/logger"
	"github.com/dmitrymomot/fasttrack/core/server"
	"github.com/dmitrymomot/fasttrack/middleware"
)

// appConfig holds settings not given on the command line.
type appConfig struct {
	Name     string `env:"APP_NAME" envDefault:"fasttrack"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	Server server.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 4 {
		printUsage(stderr)
		return 1
	}

	addr, err := netip.ParseAddr(args[1])
	if err != nil {
		fmt.Fprintf(stderr, "Invalid address %q: %v\n", args[1], err)
		return 1
	}
	port, err := server.ParsePort(args[2])
	if err != nil {
		fmt.Fprintf(stderr, "Invalid port: %v\n", err)
		return 1
	}
	workers, err := server.ParseWorkers(args[3])
	if err != nil {
		fmt.Fprintf(stderr, "Invalid threads: %v\n", err)
		return 1
	}

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	log := newLogger(cfg, stdout)

	srvCfg := cfg.Server
	srvCfg.Address = addr.String()
	srvCfg.Port = port
	srvCfg.Workers = workers

	srv, err := server.NewFromConfig(srvCfg, server.WithLogger(log))
	if err != nil {
		log.Error("invalid server configuration", logger.Error(err))
		return 1
	}

	h := handler.Chain(
		status.New(status.WithLogger(log)),
		middleware.Logging(log),
		middleware.Recover(log, status.InternalError),
	)

	defer setWorkers(srvCfg.Workers)()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(gctx, h))

	if err := g.Wait(); err != nil {
		var setupErr *server.SocketSetupError
		if errors.As(err, &setupErr) {
			log.Error("failed to start server", logger.Stage(string(setupErr.Stage)), logger.Error(setupErr.Err))
		} else {
			log.Error("server stopped", logger.Error(err))
		}
		return 1
	}
	return 0
}

// setWorkers sizes the scheduler pool that runs the accept loop and every
// session, returning a func that restores the previous size.
func setWorkers(n int) func() {
	prev := runtime.GOMAXPROCS(server.ClampWorkers(n))
	return func() { runtime.GOMAXPROCS(prev) }
}

func newLogger(cfg appConfig, out io.Writer) *slog.Logger {
	opts := []logger.Option{logger.WithOutput(out)}
	if cfg.Env == "production" {
		opts = append(opts, logger.WithProduction(cfg.Name))
	} else {
		opts = append(opts, logger.WithDevelopment(cfg.Name))
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fasttrack <address> <port> <threads>")
	fmt.Fprintln(w, "Example:")
	fmt.Fprintln(w, "    fasttrack 0.0.0.0 8080 1")
}
