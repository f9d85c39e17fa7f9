// Package config loads environment-backed configuration structs.
//
// Each infrastructure package declares its own Config struct with `env`
// tags; config.Load parses it from the process environment, reading a
// .env file first when one exists. Every distinct config type is parsed
// once per process and cached, so packages can load their configuration
// independently without re-reading the environment.
//
// Usage:
//
//	type SweeperConfig struct {
//		Interval  time.Duration `env:"BILLING_SWEEP_INTERVAL" envDefault:"1h"`
//		BatchSize int           `env:"BILLING_SWEEP_BATCH" envDefault:"100"`
//	}
//
//	var cfg SweeperConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config
