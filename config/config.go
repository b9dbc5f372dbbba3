package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server  ServerConfig  `env:",prefix=GEOCASS_SERVER_"`
	Limits  LimitsConfig  `env:",prefix=GEOCASS_LIMITS_"`
	Posthog PosthogConfig `env:",prefix=GEOCASS_POSTHOG_"`
}

type ServerConfig struct {
	ListenAddr string `env:"LISTEN_ADDR, default=0.0.0.0:8454"`
	// PublicURL is the externally visible base URL, used when building
	// daemon addresses in responses.
	PublicURL string `env:"PUBLIC_URL, default=http://localhost:8454"`
	DBPath    string `env:"DB_PATH, default=geocass.db"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	Dev       bool   `env:"DEV, default=false"`
}

type LimitsConfig struct {
	// MaxHomepageKB bounds a single daemon's homepage: page content plus
	// stylesheet.
	MaxHomepageKB     int `env:"MAX_HOMEPAGE_KB, default=1024"`
	MaxDaemonsPerUser int `env:"MAX_DAEMONS_PER_USER, default=16"`
}

type PosthogConfig struct {
	ApiKey   string `env:"API_KEY"`
	Endpoint string `env:"ENDPOINT, default=https://eu.i.posthog.com"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
