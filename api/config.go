package api

import "errors"

type CORSConfig struct {
	TrustedOrigins []string `yaml:"trusted_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Addr     string        `yaml:"addr"`
	CertFile string        `yaml:"cert_file"`
	KeyFile  string        `yaml:"key_file"`
	CORS     CORSConfig    `yaml:"cors"`
	Metrics  MetricsConfig `yaml:"metrics"`
	// MaxLimit caps the row limit a compile request may ask for.
	MaxLimit int `yaml:"max_limit"`
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

const defaultMaxBodyBytes = 1 << 20

func (c Config) maxBodyBytes() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("api server address is required")
	}

	if c.MaxLimit < 0 {
		return errors.New("max limit cannot be negative")
	}

	if c.MaxBodyBytes < 0 {
		return errors.New("max body bytes cannot be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return errors.New("metrics path is required when metrics are enabled")
	}

	return nil
}
