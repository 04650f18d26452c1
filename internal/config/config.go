// Package config handles configuration loading and persistence for the
// Scout discovery engine.
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
	DefaultQueryPort  = 28000
	DefaultAPIPort    = 5000
)

// Config is the root configuration structure for Scout.
type Config struct {
	mu   sync.RWMutex
	path string

	Server          ServerData      `json:"server"`
	Client          ClientData      `json:"client"`
	Engine          EngineData      `json:"engine"`
	ApplicationData ApplicationData `json:"application_data"`
}

// ServerData is the identity published when answering queries.
type ServerData struct {
	Name         string `json:"svr_name"`
	Password     string `json:"svr_password"`
	Info         string `json:"svr_info"`
	MaxPlayers   int    `json:"svr_max_players"`
	PrivateSlots int    `json:"svr_private_slots"`
	RegionMask   uint32 `json:"svr_region_mask"`
	Dedicated    bool   `json:"svr_dedicated"`
	ServerType   string `json:"svr_type"` // "MultiPlayer" or "SinglePlayer"
	InviteCode   string `json:"svr_invite_code"`
	GameType     string `json:"svr_game_type"`
	MissionType  string `json:"svr_mission_type"`
	MissionName  string `json:"svr_mission_name"`
	BotCount     int    `json:"svr_bot_count"`
	GuidList     string `json:"svr_guid_list"` // tab-separated player GUIDs
	PlayerCount  int    `json:"svr_player_count"`
	AcceptsConns bool   `json:"svr_accepts_connections"`
}

// ClientData is the browser-side configuration.
type ClientData struct {
	// Masters holds up to ten entries of form "<region>:<host:port>".
	Masters    []string `json:"masters"`
	RegionMask uint32   `json:"net_region_mask"`
	QueryPort  uint16   `json:"query_port"`
	// Favorites holds entries of form "<name>\t<address>".
	Favorites []string `json:"favorites"`
}

// EngineData exposes the protocol tunables. The concurrency caps were
// fixed in older engines; they are configurable here.
type EngineData struct {
	MaxConcurrentPings   int `json:"max_concurrent_pings"`
	MaxConcurrentQueries int `json:"max_concurrent_queries"`
	NATProfile           bool `json:"nat_profile"`
}

// ApplicationData contains service-level configuration.
type ApplicationData struct {
	APIPort   int           `json:"api_port"`
	StorePath string        `json:"store_path"`
	MQTT      MQTTConfig    `json:"mqtt"`
	Logging   LoggingConfig `json:"logging"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	ClientID  string `json:"client_id"`
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
		Server: ServerData{
			Name:         "Scout Server",
			MaxPlayers:   16,
			ServerType:   "MultiPlayer",
			GameType:     "multiplayer",
			MissionType:  "any",
			AcceptsConns: false,
		},
		Client: ClientData{
			RegionMask: 1,
			QueryPort:  DefaultQueryPort,
		},
		Engine: EngineData{
			MaxConcurrentPings:   10,
			MaxConcurrentQueries: 2,
		},
		ApplicationData: ApplicationData{
			APIPort:   DefaultAPIPort,
			StorePath: "config/scout.db",
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file, creating the default when the
// file does not exist yet.
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
	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(struct {
		Server          ServerData      `json:"server"`
		Client          ClientData      `json:"client"`
		Engine          EngineData      `json:"engine"`
		ApplicationData ApplicationData `json:"application_data"`
	}{c.Server, c.Client, c.Engine, c.ApplicationData}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetServer returns a copy of the server identity section.
func (c *Config) GetServer() ServerData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// SetServer replaces the server identity section.
func (c *Config) SetServer(s ServerData) {
	c.mu.Lock()
	c.Server = s
	c.mu.Unlock()
}

// GetClient returns a copy of the client section.
func (c *Config) GetClient() ClientData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.Client
	out.Masters = append([]string(nil), c.Client.Masters...)
	out.Favorites = append([]string(nil), c.Client.Favorites...)
	return out
}

// SetClient replaces the client section.
func (c *Config) SetClient(cl ClientData) {
	c.mu.Lock()
	c.Client = cl
	c.mu.Unlock()
}

// GetEngine returns a copy of the engine tunables.
func (c *Config) GetEngine() EngineData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Engine
}
