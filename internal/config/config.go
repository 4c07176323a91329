// Package config carries the process-wide, read-only engine settings.
package config

import (
	"errors"
	"os"
	"time"
)

// Env var names.
const (
	EnvRPCURL       = "PERPSIM_RPC_URL"
	EnvExchangeAddr = "PERPSIM_EXCHANGE_ADDR"
	EnvForkBinary   = "PERPSIM_FORK_BINARY"
	EnvForkTimeout  = "PERPSIM_FORK_TIMEOUT"
)

// Validation errors.
var (
	ErrMissingRPCURL   = errors.New("live RPC URL is required (" + EnvRPCURL + ")")
	ErrMissingExchange = errors.New("exchange address is required (" + EnvExchangeAddr + ")")
)

// Config is the read-only environment one engine invocation runs against.
// It is the only process-wide state the engine has.
type Config struct {
	// LiveRPCURL is the upstream ledger endpoint forks are created from.
	LiveRPCURL string
	// ExchangeAddr is the exchange contract address.
	ExchangeAddr string
	// ForkBinary is the fork tool name or path, empty for the default.
	ForkBinary string
	// ForkStartTimeout bounds fork readiness, zero for the default.
	ForkStartTimeout time.Duration
}

// FromEnv builds a Config from environment variables. Flag values take
// precedence at the call site; FromEnv only fills what is unset.
func FromEnv() Config {
	cfg := Config{
		LiveRPCURL:   os.Getenv(EnvRPCURL),
		ExchangeAddr: os.Getenv(EnvExchangeAddr),
		ForkBinary:   os.Getenv(EnvForkBinary),
	}
	if raw := os.Getenv(EnvForkTimeout); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.ForkStartTimeout = d
		}
	}
	return cfg
}

// Validate checks the required settings.
func (c Config) Validate() error {
	if c.LiveRPCURL == "" {
		return ErrMissingRPCURL
	}
	if c.ExchangeAddr == "" {
		return ErrMissingExchange
	}
	return nil
}
