package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.Mutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into the provided configuration struct.
// A `.env` file in the working directory is loaded once per process before
// the first parse; a missing file is not an error.
//
// Each configuration type is parsed at most once for the lifetime of the
// process; later calls for the same type return the cached copy. This keeps
// startup deterministic when several components share a config struct.
//
// Example:
//
//	type BillingConfig struct {
//		APIKey        string `env:"PADDLE_API_KEY,required"`
//		WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg BillingConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// The .env file is a development convenience only.
		_ = godotenv.Load()
	})

	key := fmt.Sprintf("%T", *v)

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	// Store a copy so callers cannot mutate the cached value.
	loaded[key] = *v
	return nil
}

// MustLoad works like Load but panics on failure. Intended for configuration
// without which the process cannot start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %T: %v", *v, err))
	}
}
