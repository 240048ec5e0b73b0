package config

import (
	"errors"
	"fmt"
	"time"

	"salonbot/internal/booking"
)

// Config is the full salonbot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Transport TransportConfig `json:"transport"`
	Booking   BookingConfig   `json:"booking"`
	Notify    NotifyConfig    `json:"notify"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Digest    DigestConfig    `json:"digest,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty"` // default ":3000"
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"` // default true
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

// StorageConfig selects the durable backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// TransportConfig selects the chat backend behind the message sender.
type TransportConfig struct {
	Driver   string `json:"driver,omitempty"` // "telegram", "gateway" or "log"
	Telegram struct {
		Token       string `json:"token,omitempty"`
		PollTimeout string `json:"poll_timeout,omitempty"`
	} `json:"telegram,omitempty"`
	Gateway struct {
		URL     string `json:"url,omitempty"`
		Token   string `json:"token,omitempty"`
		Timeout string `json:"timeout,omitempty"`
	} `json:"gateway,omitempty"`
}

type BookingConfig struct {
	// MaxServices caps the services in one availability request; the
	// subset search is exponential in the selection size.
	MaxServices int `json:"max_services,omitempty"`
}

type NotifyConfig struct {
	OwnerNumber  string `json:"owner_number,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

type BroadcastConfig struct {
	Workers    int `json:"workers,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// DigestConfig controls the daily owner digest and job retention prune.
type DigestConfig struct {
	Enabled bool `json:"enabled"`
	// At is the daily send time "HH:MM" (default "08:00").
	At string `json:"at,omitempty"`
	// Retention is how long terminal jobs are kept (default "720h").
	Retention string `json:"retention,omitempty"`
}

// Validate checks cross-field constraints that the decoder cannot.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Booking.MaxServices < 0 {
		return errors.New("booking.max_services must be >= 0")
	}
	if c.Digest.Enabled && c.Digest.At != "" {
		if _, err := time.Parse("15:04", c.Digest.At); err != nil {
			return fmt.Errorf("digest.at: %w", err)
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"transport.telegram.poll_timeout", c.Transport.Telegram.PollTimeout},
		{"transport.gateway.timeout", c.Transport.Gateway.Timeout},
		{"digest.retention", c.Digest.Retention},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) ServerAddr() string {
	if c.Server.Addr == "" {
		return ":3000"
	}
	return c.Server.Addr
}

func (c *Config) MaxServices() int {
	if c.Booking.MaxServices == 0 {
		return booking.DefaultMaxServices
	}
	return c.Booking.MaxServices
}

func (c *Config) ConsoleLogging() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}
