package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNilTarget is returned when Load receives a nil pointer.
var ErrNilTarget = errors.New("config target must be a non-nil pointer")

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> any (value of T)
)

// Load parses environment variables into cfg. The first call for a given
// type hits the environment; later calls copy the cached value.
// A .env file in the working directory is loaded once, if present.
// Variables already set in the process environment win over .env values.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilTarget
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	var loaded T
	if err := env.Parse(&loaded); err != nil {
		return fmt.Errorf("failed to parse %s from environment: %w", key, err)
	}

	actual, _ := cache.LoadOrStore(key, loaded)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on error. Intended for process startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops all cached values. Tests use it between cases that
// change the environment.
func Reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}
