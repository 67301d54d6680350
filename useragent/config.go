// Copyright 2021 The opener Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package useragent

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes the names of the environment variables read by
// ParseConfig.
const EnvPrefix = "OPENER_"

// Config holds the settings of a UserAgent which are plain values. The
// env tags name the variables read by ParseConfig, without EnvPrefix.
type Config struct {
	// UserAgent is sent as the User-Agent header of requests which
	// lack one. If empty, no User-Agent header is added.
	UserAgent string `env:"USER_AGENT" envDefault:"opener/1.0"`
	// MaxRedirections limits the length of a redirect chain.
	MaxRedirections int `env:"MAX_REDIRECTIONS" envDefault:"10"`
	// MaxRepeats limits how often one redirect chain may visit a URL.
	MaxRepeats int `env:"MAX_REPEATS" envDefault:"4"`
	// RefreshMaxWait is the longest Refresh delay which is followed.
	RefreshMaxWait time.Duration `env:"REFRESH_MAX_WAIT" envDefault:"30s"`
	// RefreshHonorTime makes refreshes wait for their delay.
	RefreshHonorTime bool `env:"REFRESH_HONOR_TIME" envDefault:"true"`
	// Robots turns robots.txt checking on.
	Robots bool `env:"ROBOTS" envDefault:"true"`
	// Timeout bounds each fetch. If zero, timeout.DefaultPolicy is used.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// Proxies maps URL schemes to proxies, for example
	// "http=proxy.example.com:3128,https=proxy.example.com:3128". If
	// empty, proxies are taken from the standard proxy environment
	// variables.
	Proxies map[string]string `env:"PROXIES" envKeyValSeparator:"="`
	// LogLevel is the level of loggers made by NewLogger.
	LogLevel zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseConfig reads a Config from the environment.
func ParseConfig() (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errors.Wrap(err, "failed to parse environment")
	}
	return c, nil
}

// DefaultConfig returns the Config ParseConfig returns for an empty
// environment.
func DefaultConfig() Config {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return c
}

// NewLogger creates a JSON zap logger at the level of cfg.
func NewLogger(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
