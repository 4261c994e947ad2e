// Package config loads the broker connection parameters of a bridge.
//
// Parameters come from config.toml in the application directory, then from
// COOLQ_AMQ_* environment variables, which take precedence. A missing file
// means all defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	amqp "github.com/rabbitmq/amqp091-go"
)

// FileName is the configuration file looked up in the application directory
const FileName = "config.toml"

// Config holds broker connection parameters
type Config struct {
	Host     string `toml:"host"     env:"COOLQ_AMQ_HOST"`
	Port     int    `toml:"port"     env:"COOLQ_AMQ_PORT"`
	VHost    string `toml:"vhost"    env:"COOLQ_AMQ_VHOST"`
	Username string `toml:"username" env:"COOLQ_AMQ_USERNAME"`
	Password string `toml:"password" env:"COOLQ_AMQ_PASSWORD"`
	// Timeout bounds connecting, in seconds
	Timeout int `toml:"timeout" env:"COOLQ_AMQ_TIMEOUT"`
	// Heartbeat is the requested heartbeat interval in seconds; 0 takes the broker's
	Heartbeat int `toml:"heartbeat" env:"COOLQ_AMQ_HEARTBEAT"`
	// ConnectRetries is the number of extra startup attempts; 0 disables retry
	ConnectRetries int `toml:"connect_retries" env:"COOLQ_AMQ_CONNECT_RETRIES"`
	// RetryDelay is the first backoff delay between attempts, in seconds
	RetryDelay int `toml:"retry_delay" env:"COOLQ_AMQ_RETRY_DELAY"`
}

// Default returns the built-in parameters
func Default() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5672,
		VHost:          "/",
		Username:       "guest",
		Password:       "guest",
		Timeout:        10,
		Heartbeat:      10,
		ConnectRetries: 0,
		RetryDelay:     1,
	}
}

// Load reads dir/config.toml over the defaults, applies environment
// overrides and validates the result. All failures are *Error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, &Error{Op: "decode", Path: path, Err: err}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Op: "stat", Path: path, Err: err}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &Error{Op: "environment", Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "validate", Path: path, Err: err}
	}

	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, fmt.Errorf("%w: host is empty", ErrInvalidValue))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d is out of range", ErrInvalidValue, c.Port))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidValue, c.Timeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("%w: heartbeat must not be negative, got %d", ErrInvalidValue, c.Heartbeat))
	}
	if c.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: connect_retries must not be negative, got %d", ErrInvalidValue, c.ConnectRetries))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("%w: retry_delay must be positive, got %d", ErrInvalidValue, c.RetryDelay))
	}
	return errors.Join(errs...)
}

// URI returns the AMQP connection string
func (c *Config) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    c.VHost,
	}.String()
}

// ConnectTimeout returns Timeout as a duration
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// HeartbeatInterval returns Heartbeat as a duration
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}

// RetryInterval returns RetryDelay as a duration
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}
