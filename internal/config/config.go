package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.parley/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// MaxMessageLen bounds the text length of a single message.
	MaxMessageLen int `toml:"max_message_len"`
	// MemorySize bounds the assistant's conversational memory ring.
	MemorySize int `toml:"memory_size"`

	// Simulated delivery timing, milliseconds.
	DeliverDelayMs  int `toml:"deliver_delay_ms"`
	DeliverJitterMs int `toml:"deliver_jitter_ms"`
	ReadDelayMs     int `toml:"read_delay_ms"`
	ReadJitterMs    int `toml:"read_jitter_ms"`

	// Simulated contact reply timing, milliseconds.
	ReplyMinDelayMs int `toml:"reply_min_delay_ms"`
	ReplyMaxDelayMs int `toml:"reply_max_delay_ms"`

	// Presence simulation tick interval, milliseconds.
	PresenceTickMs int `toml:"presence_tick_ms"`
}

// Default returns a config with all tunables at their defaults.
func Default() *Config {
	return &Config{
		MaxMessageLen:   1000,
		MemorySize:      50,
		DeliverDelayMs:  800,
		DeliverJitterMs: 200,
		ReadDelayMs:     2500,
		ReadJitterMs:    500,
		ReplyMinDelayMs: 600,
		ReplyMaxDelayMs: 1400,
		PresenceTickMs:  15000,
	}
}

// Load reads config from the given path, filling unset fields with defaults.
// Returns defaults along with the error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return Default(), err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.MaxMessageLen <= 0 {
		c.MaxMessageLen = d.MaxMessageLen
	}
	if c.MemorySize <= 0 {
		c.MemorySize = d.MemorySize
	}
	if c.DeliverDelayMs <= 0 {
		c.DeliverDelayMs = d.DeliverDelayMs
	}
	if c.DeliverJitterMs < 0 {
		c.DeliverJitterMs = d.DeliverJitterMs
	}
	if c.ReadDelayMs <= 0 {
		c.ReadDelayMs = d.ReadDelayMs
	}
	if c.ReadJitterMs < 0 {
		c.ReadJitterMs = d.ReadJitterMs
	}
	if c.ReplyMinDelayMs <= 0 {
		c.ReplyMinDelayMs = d.ReplyMinDelayMs
	}
	if c.ReplyMaxDelayMs < c.ReplyMinDelayMs {
		c.ReplyMaxDelayMs = c.ReplyMinDelayMs
	}
	if c.PresenceTickMs <= 0 {
		c.PresenceTickMs = d.PresenceTickMs
	}
}

// DeliverDelay returns the base Sent->Delivered delay.
func (c *Config) DeliverDelay() time.Duration {
	return time.Duration(c.DeliverDelayMs) * time.Millisecond
}

// DeliverJitter returns the maximum jitter added to the deliver delay.
func (c *Config) DeliverJitter() time.Duration {
	return time.Duration(c.DeliverJitterMs) * time.Millisecond
}

// ReadDelay returns the base Delivered->Read delay.
func (c *Config) ReadDelay() time.Duration {
	return time.Duration(c.ReadDelayMs) * time.Millisecond
}

// ReadJitter returns the maximum jitter added to the read delay.
func (c *Config) ReadJitter() time.Duration {
	return time.Duration(c.ReadJitterMs) * time.Millisecond
}

// ReplyDelayWindow returns the (min, max) window for simulated contact replies.
func (c *Config) ReplyDelayWindow() (time.Duration, time.Duration) {
	return time.Duration(c.ReplyMinDelayMs) * time.Millisecond,
		time.Duration(c.ReplyMaxDelayMs) * time.Millisecond
}

// PresenceTick returns the presence simulation interval.
func (c *Config) PresenceTick() time.Duration {
	return time.Duration(c.PresenceTickMs) * time.Millisecond
}

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config default_profile
// 3. "default"
func Resolve(flagOverride, configPath string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := Load(configPath)
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return "default"
}
