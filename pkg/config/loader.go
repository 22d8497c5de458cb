package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// registry keeps one parsed copy per configuration type.
type registry struct {
	mu     sync.Mutex
	loaded map[reflect.Type]any
}

var (
	configs = &registry{loaded: make(map[reflect.Type]any)}

	dotenvOnce sync.Once
)

// Load parses environment variables into v using `env` struct tags.
//
// A `.env` file in the working directory is read once per process if it exists;
// variables already present in the environment win over the file. Each
// configuration type is parsed at most once, later calls receive a copy of the
// cached value:
//
//	var cfg billing.StripeConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// Missing .env is the normal case outside local development.
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	configs.mu.Lock()
	defer configs.mu.Unlock()

	if cached, ok := configs.loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	configs.loaded[key] = parsed
	*v = parsed

	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: load %T: %v", *v, err))
	}
}

// Reset drops every cached configuration. Intended for tests that mutate the
// environment between loads.
func Reset() {
	configs.mu.Lock()
	configs.loaded = make(map[reflect.Type]any)
	configs.mu.Unlock()
}
