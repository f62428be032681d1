// Package config handles configuration loading, validation, and persistence
// for the GPGNet mock.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultGPGNetPort     = 7237
	DefaultTickIntervalMS = 100
	DefaultAPIPort        = 7280
	DefaultScenario       = "monument_valley.v0001"
	DefaultAdvertiseHost  = "127.0.0.1"
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	GPGNet    GPGNetConfig    `json:"gpgnet"`
	Relay     RelayConfig     `json:"relay"`
	Players   []PlayerConfig  `json:"players"`
	Logging   LoggingConfig   `json:"logging"`
	Recording RecordingConfig `json:"recording"`
	MQTT      MQTTConfig      `json:"mqtt"`
	API       APIConfig       `json:"api"`
}

// GPGNetConfig holds the control protocol settings.
type GPGNetConfig struct {
	BindHost       string `json:"bind_host"`
	Port           int    `json:"port"`
	TickIntervalMS int    `json:"tick_interval_ms"`
	Scenario       string `json:"scenario"`
	AdvertiseHost  string `json:"advertise_host"`
}

// RelayConfig holds the MP relay settings.
type RelayConfig struct {
	BindHost     string `json:"bind_host"`
	TargetHost   string `json:"target_host"`
	SyntheticAck bool   `json:"synthetic_ack"`
}

// PlayerConfig describes one predefined player slot.
type PlayerConfig struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	LobbyPort int    `json:"lobby_port"`
	ProxyPort int    `json:"proxy_port"`
	Host      bool   `json:"host"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// RecordingConfig selects the optional MP header recording sink.
type RecordingConfig struct {
	Path string `json:"path"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// APIConfig holds the status API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// DefaultPlayers returns the two-player roster the harness ships with.
func DefaultPlayers() []PlayerConfig {
	return []PlayerConfig{
		{ID: 1, Name: "player1", LobbyPort: 6123, ProxyPort: 7123, Host: true},
		{ID: 2, Name: "player2", LobbyPort: 6124, ProxyPort: 7124},
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GPGNet: GPGNetConfig{
			BindHost:       "0.0.0.0",
			Port:           DefaultGPGNetPort,
			TickIntervalMS: DefaultTickIntervalMS,
			Scenario:       DefaultScenario,
			AdvertiseHost:  DefaultAdvertiseHost,
		},
		Relay: RelayConfig{
			BindHost:   "0.0.0.0",
			TargetHost: "127.0.0.1",
		},
		Players: DefaultPlayers(),
		Logging: LoggingConfig{
			Level:      "info",
			MaxBackups: 5,
		},
		MQTT: MQTTConfig{
			Port:        1883,
			TopicPrefix: "gpgnet-mock",
		},
		API: APIConfig{
			Port:         DefaultAPIPort,
			RateLimitRPS: 50,
		},
	}
}

// Load reads configuration from a JSON file. An empty path yields the
// defaults; values present in the file overlay them.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// A roster in the file replaces the default one rather than merging
	// element-wise into it.
	cfg.Players = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if cfg.Players == nil {
		cfg.Players = DefaultPlayers()
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")
	return cfg, nil
}

// SaveAs writes the current configuration to path and remembers it.
func (c *Config) SaveAs(path string) error {
	c.mu.Lock()
	c.path = path
	c.mu.Unlock()
	return c.Save()
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// TickInterval returns the peer-introduction tick as a time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.GPGNet.TickIntervalMS) * time.Millisecond
}

// HostPlayer returns the roster entry flagged as host.
func (c *Config) HostPlayer() (PlayerConfig, bool) {
	for _, p := range c.Players {
		if p.Host {
			return p, true
		}
	}
	return PlayerConfig{}, false
}
