// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use and uses the caarlos0/env
// library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/fasttrack/core/config"
//
//	type AppConfig struct {
//		Name     string `env:"APP_NAME" envDefault:"fasttrack"`
//		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//		Server   server.Config
//	}
//
//	func main() {
//		var cfg AppConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 AppConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 AppConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Call Reset to force the next Load to read the environment again.
package config
