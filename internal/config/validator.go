package config

import (
	"fmt"
	"net"
	"strings"
)

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

	validateServerData(&cfg.ServerData, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateServerData(data *ServerData, result *ValidationResult) {
	endpoint := strings.TrimSpace(data.Endpoint)
	if endpoint == "" {
		result.AddError("server_data.srv_endpoint", "server domain is required")
	} else if strings.Contains(endpoint, "://") || strings.Contains(endpoint, "/") {
		result.AddError("server_data.srv_endpoint",
			"server domain must be a bare domain (no scheme or path)")
	}

	if !data.UseOAuth {
		if strings.TrimSpace(data.Username) == "" {
			result.AddError("server_data.srv_username", "username is required without OAuth login")
		}
		if len(data.PasswordMD5) != 32 {
			result.AddError("server_data.srv_password_md5",
				"password hash must be a 32-character md5 hex digest")
		}
	}

	if strings.TrimSpace(data.ClientVersion) == "" {
		result.AddError("server_data.srv_client_version", "client version string is required")
	}

	if data.UTCOffset < -12 || data.UTCOffset > 14 {
		result.AddError("server_data.srv_utc_offset", "UTC offset must be between -12 and +14")
	}

	if strings.TrimSpace(data.DataDirectory) == "" {
		result.AddError("server_data.srv_data_directory", "data directory is required")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	validateTimers(&data.Timers, result)

	// Replay cleaner
	if data.ReplayCleaner.Enabled {
		if data.ReplayCleaner.RetentionDays < 1 {
			result.AddError("application_data.replay_cleaner.retention_days",
				"retention days must be at least 1")
		}
	}

	// Local REST API
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
	}

	// MQTT
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	if data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}

	if strings.TrimSpace(data.Database.Path) == "" {
		result.AddError("application_data.database.path", "database path is required")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.PongTimeout < 5 {
		result.AddWarning("timers.pong_timeout_sec",
			"pong timeout under 5s will disconnect on ordinary latency spikes")
	}
	if timers.BatchFlushInterval < 50 {
		result.AddWarning("timers.batch_flush_interval_ms",
			"batch flush interval under 50ms defeats request coalescing")
	}
	if timers.MaxPingInterval < 5 {
		result.AddWarning("timers.max_ping_interval_sec",
			"max ping interval under 5s may cause excessive traffic")
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

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
