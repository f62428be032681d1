package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

// RelayPortThreshold splits relay traffic by source port: below it a
// datagram comes from a game client, at or above it from another relay.
const RelayPortThreshold = 7000

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateGPGNet(&cfg.GPGNet, result)
	validateRelay(&cfg.Relay, result)
	validatePlayers(cfg.Players, result)
	validateServices(cfg, result)

	return result
}

func validateGPGNet(data *GPGNetConfig, result *ValidationResult) {
	validatePort(data.Port, "gpgnet.port", result)

	if data.TickIntervalMS < 1 {
		result.AddError("gpgnet.tick_interval_ms", "tick interval must be at least 1ms")
	} else if data.TickIntervalMS > 5000 {
		result.AddWarning("gpgnet.tick_interval_ms",
			fmt.Sprintf("tick interval %dms will make peer introduction slow", data.TickIntervalMS))
	}

	if len(data.Scenario) > protocol.MaxStringLen {
		result.AddError("gpgnet.scenario", "scenario name exceeds the GPGNet string limit")
	}
	if net.ParseIP(data.AdvertiseHost) == nil {
		result.AddWarning("gpgnet.advertise_host",
			fmt.Sprintf("advertise host %q is not an IP literal", data.AdvertiseHost))
	}
}

func validateRelay(data *RelayConfig, result *ValidationResult) {
	if net.ParseIP(data.TargetHost) == nil {
		result.AddError("relay.target_host", fmt.Sprintf("relay target %q must be an IP address", data.TargetHost))
	}
	if data.BindHost != "" && net.ParseIP(data.BindHost) == nil {
		result.AddError("relay.bind_host", fmt.Sprintf("relay bind host %q must be an IP address", data.BindHost))
	}
}

func validatePlayers(players []PlayerConfig, result *ValidationResult) {
	if len(players) == 0 {
		result.AddError("players", "at least one player slot is required")
		return
	}

	hosts := 0
	ids := make(map[uint32]bool)
	ports := make(map[int]string)

	for i, p := range players {
		field := fmt.Sprintf("players[%d]", i)

		if p.Host {
			hosts++
		}
		if p.ID == 0 {
			result.AddError(field+".id", "player id must be non-zero")
		}
		if ids[p.ID] {
			result.AddError(field+".id", fmt.Sprintf("duplicate player id %d", p.ID))
		}
		ids[p.ID] = true

		if strings.TrimSpace(p.Name) == "" {
			result.AddError(field+".name", "player name is required")
		}
		if len(p.Name) > protocol.MaxStringLen {
			result.AddError(field+".name", "player name exceeds the GPGNet string limit")
		}

		validatePort(p.LobbyPort, field+".lobby_port", result)
		validatePort(p.ProxyPort, field+".proxy_port", result)

		// The relay tells game and relay traffic apart by source port.
		if p.LobbyPort >= RelayPortThreshold {
			result.AddError(field+".lobby_port",
				fmt.Sprintf("lobby port must be below %d", RelayPortThreshold))
		}
		if p.ProxyPort < RelayPortThreshold {
			result.AddError(field+".proxy_port",
				fmt.Sprintf("proxy port must be at least %d", RelayPortThreshold))
		}

		for _, port := range []int{p.LobbyPort, p.ProxyPort} {
			if owner, taken := ports[port]; taken {
				result.AddError(field, fmt.Sprintf("port %d already used by %s", port, owner))
			}
			ports[port] = p.Name
		}
	}

	if hosts != 1 {
		result.AddError("players", fmt.Sprintf("exactly one host is required, found %d", hosts))
	}
}

func validateServices(cfg *Config, result *ValidationResult) {
	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerURL) == "" {
			result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			result.AddError("mqtt.port", "invalid MQTT port")
		}
	}

	if cfg.API.Enabled {
		validatePort(cfg.API.Port, "api.port", result)
		if cfg.API.Port == cfg.GPGNet.Port {
			result.AddError("api.port", "API port conflicts with the GPGNet port")
		}
		if cfg.API.RateLimitRPS < 0 {
			result.AddError("api.rate_limit_rps", "rate limit cannot be negative")
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
