// Package config loads settings for both chat roles.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omochice/turn-chat/internal/transport"
	"github.com/omochice/turn-chat/pkg/protocol"
)

// DefaultServerHandle labels messages sent by the listening side.
const DefaultServerHandle = "Server3000"

type Config struct {
	Host           string    `yaml:"host"`
	Port           int       `yaml:"port"`
	Handle         string    `yaml:"handle"`
	Transport      string    `yaml:"transport"` // tcp/ws
	WebSocket      bool      `yaml:"websocket"` // accept WebSocket upgrades on the listening port
	Concurrent     int       `yaml:"concurrent"`
	MaxMessageSize int       `yaml:"max_message_size"`
	DialTimeout    Duration  `yaml:"dial_timeout"`
	Log            LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

// DefaultServer returns the settings of the listening role.
// An empty host binds every interface.
func DefaultServer() Config {
	return Config{
		Handle:         DefaultServerHandle,
		Transport:      transport.TCP,
		WebSocket:      true,
		MaxMessageSize: transport.DefaultMaxMessageSize,
		Log:            LogConfig{Level: "info"},
	}
}

// DefaultClient returns the settings of the connecting role.
// The handle is left empty so the user is asked for one.
func DefaultClient() Config {
	return Config{
		Host:           "localhost",
		Transport:      transport.TCP,
		MaxMessageSize: transport.DefaultMaxMessageSize,
		DialTimeout:    Duration{10 * time.Second},
		Log:            LogConfig{Level: "info"},
	}
}

// Load reads YAML from path on top of base.
func Load(path string, base Config) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the settings shared by both roles.
// The handle is only checked when set.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Transport {
	case transport.TCP, transport.WebSocket:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Handle != "" {
		if err := protocol.ValidateHandle(c.Handle); err != nil {
			return err
		}
	}
	if c.Concurrent < 0 {
		return errors.New("concurrent must not be negative")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}
	return nil
}

// Address joins host and port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
