package app

import (
	"github.com/dmitrymomot/vaultkit/pkg/billing"
	"github.com/dmitrymomot/vaultkit/pkg/config"
	"github.com/dmitrymomot/vaultkit/pkg/httpserver"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	mongox "github.com/dmitrymomot/vaultkit/pkg/mongo"
	"github.com/dmitrymomot/vaultkit/pkg/quota"
	redisx "github.com/dmitrymomot/vaultkit/pkg/redis"
)

// Config holds the process-level settings.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"vaultkit"`

	// TriggerSecret enables POST /internal/triggers/passwords.
	TriggerSecret string `env:"TRIGGER_SECRET"`
	// TagChangeFeed follows the passwords change stream in process.
	TagChangeFeed bool `env:"TAG_CHANGE_FEED" envDefault:"true"`
}

// settings groups every component configuration loaded at startup.
type settings struct {
	app      Config
	http     httpserver.Config
	mongo    mongox.Config
	redis    redisx.Config
	quota    quota.Config
	billing  billing.Config
	stripe   billing.StripeConfig
	paddle   billing.PaddleConfig
	identity identity.Config
}

func loadSettings() (settings, error) {
	var s settings
	for _, load := range []func() error{
		func() error { return config.Load(&s.app) },
		func() error { return config.Load(&s.http) },
		func() error { return config.Load(&s.mongo) },
		func() error { return config.Load(&s.redis) },
		func() error { return config.Load(&s.quota) },
		func() error { return config.Load(&s.billing) },
		func() error { return config.Load(&s.stripe) },
		func() error { return config.Load(&s.paddle) },
		func() error { return config.Load(&s.identity) },
	} {
		if err := load(); err != nil {
			return settings{}, err
		}
	}
	return s, nil
}
