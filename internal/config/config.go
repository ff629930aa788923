// Package config handles configuration loading, validation, and persistence
// for the Overture client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5001
	DefaultEndpoint   = "overture.gg"
)

// Config is the root configuration structure for Overture.
type Config struct {
	mu   sync.RWMutex
	path string

	ServerData      ServerData      `json:"server_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// ServerData contains the game server account and endpoint configuration.
type ServerData struct {
	// Endpoint is the bare server domain; the client derives the
	// c.<endpoint> and osu.<endpoint> hosts from it.
	Endpoint string `json:"srv_endpoint"`

	// Credentials. PasswordMD5 is the only credential form ever stored;
	// OAuth tokens are obtained at runtime and never persisted.
	Username    string `json:"srv_username"`
	PasswordMD5 string `json:"srv_password_md5"`
	UseOAuth    bool   `json:"srv_use_oauth"`

	// Client identity
	ClientVersion string `json:"srv_client_version"`
	UTCOffset     int    `json:"srv_utc_offset"`
	DisplayCity   bool   `json:"srv_display_city"`
	PMsPrivate    bool   `json:"srv_pms_private"`

	// Paths
	DataDirectory   string `json:"srv_data_directory"`
	ReplayDirectory string `json:"srv_replay_directory"`

	// Transport
	PreferWebsockets bool `json:"srv_prefer_websockets"`
}

// ApplicationData contains client application configuration.
type ApplicationData struct {
	Timers        TimerConfig         `json:"timers"`
	ReplayCleaner ReplayCleanerConfig `json:"replay_cleaner"`
	API           APIConfig           `json:"api"`
	MQTT          MQTTConfig          `json:"mqtt"`
	Database      DatabaseConfig      `json:"database"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// TimerConfig holds pump and maintenance interval settings.
type TimerConfig struct {
	BatchFlushInterval   int `json:"batch_flush_interval_ms"`
	PongTimeout          int `json:"pong_timeout_sec"`
	MaxPingInterval      int `json:"max_ping_interval_sec"`
	ReconnectBaseDelay   int `json:"reconnect_base_delay_sec"`
	ReconnectMaxDelay    int `json:"reconnect_max_delay_sec"`
	StatsPollingInterval int `json:"stats_polling_interval_sec"`
}

// ReplayCleanerConfig holds downloaded-replay cleanup settings.
type ReplayCleanerConfig struct {
	Enabled       bool   `json:"enabled"`
	CleanupTime   string `json:"cleanup_time"`
	RetentionDays int    `json:"retention_days"`
}

// APIConfig holds the local REST API settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Bind    string `json:"bind"`
	Port    int    `json:"port"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
}

// DatabaseConfig holds the local beatmap cache settings.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig holds security-related settings for the REST API.
type SecurityConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerData: ServerData{
			Endpoint:        DefaultEndpoint,
			ClientVersion:   "b20260101.1",
			DataDirectory:   "data",
			ReplayDirectory: filepath.Join("data", "replays"),
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				BatchFlushInterval:   250,
				PongTimeout:          10,
				MaxPingInterval:      30,
				ReconnectBaseDelay:   5,
				ReconnectMaxDelay:    300,
				StatsPollingInterval: 10,
			},
			ReplayCleaner: ReplayCleanerConfig{
				Enabled:       true,
				CleanupTime:   "04:00",
				RetentionDays: 14,
			},
			API: APIConfig{
				Enabled: true,
				Bind:    "127.0.0.1",
				Port:    DefaultAPIPort,
			},
			MQTT: MQTTConfig{
				Enabled: false,
				Port:    8883,
				UseTLS:  true,
			},
			Database: DatabaseConfig{
				Path: filepath.Join("data", "overture.db"),
			},
			Security: SecurityConfig{
				RateLimitRPS: 100,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	// This ensures config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ensure config directory exists
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

// GetServerData returns a copy of the server configuration.
func (c *Config) GetServerData() ServerData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerData
}

// SetServerData updates the server configuration.
func (c *Config) SetServerData(data ServerData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ServerData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateServerField updates a specific field in the server data.
func (c *Config) UpdateServerField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Marshal current server data to map
	data, _ := json.Marshal(c.ServerData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	// Update field
	m[key] = value

	// Unmarshal back
	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.ServerData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// UpdateAppField updates a specific field in application data.
func (c *Config) UpdateAppField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.ApplicationData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.ApplicationData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerData.Username == "" && !c.ServerData.UseOAuth
}
