package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CatalogMode selects where catalog data comes from
type CatalogMode string

const (
	CatalogModeNetwork CatalogMode = "network"
	CatalogModeOffline CatalogMode = "offline"
)

// PlayerBackend identifies the media engine behind the playback controller
type PlayerBackend string

const (
	PlayerBackendMPV PlayerBackend = "mpv"
	PlayerBackendSim PlayerBackend = "sim"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Player  PlayerConfig  `mapstructure:"player"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the catalog server location and viewer credentials
type ServerConfig struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	UserID   string `mapstructure:"user_id"`
	Username string `mapstructure:"username"` // display only
}

// CatalogConfig controls fetching behavior
type CatalogConfig struct {
	Mode     CatalogMode   `mapstructure:"mode"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"` // per request
}

// PlayerConfig holds media player configuration
type PlayerConfig struct {
	Backend       PlayerBackend `mapstructure:"backend"`
	Command       string        `mapstructure:"command"`
	Args          []string      `mapstructure:"args"`
	InitialVolume float64       `mapstructure:"initial_volume"`
	InitialRate   float64       `mapstructure:"initial_rate"`
	AutoPlay      bool          `mapstructure:"auto_play"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	OverlayTimeout time.Duration `mapstructure:"overlay_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Mode:     CatalogModeNetwork,
			PageSize: 20,
			Timeout:  15 * time.Second,
		},
		Player: PlayerConfig{
			Backend:       PlayerBackendMPV,
			Command:       "mpv",
			Args:          []string{},
			InitialVolume: 1.0,
			InitialRate:   1.0,
		},
		UI: UIConfig{
			OverlayTimeout: 3 * time.Second,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel", "reel.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel", "reel.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reel")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// REEL_SERVER_URL overrides server.url, etc.
	viper.SetEnvPrefix("REEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper(), DefaultConfig())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(viper.GetViper())
}

// setDefaults registers every key so env overrides apply even without a file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.user_id", cfg.Server.UserID)
	v.SetDefault("server.username", cfg.Server.Username)
	v.SetDefault("catalog.mode", string(cfg.Catalog.Mode))
	v.SetDefault("catalog.page_size", cfg.Catalog.PageSize)
	v.SetDefault("catalog.timeout", cfg.Catalog.Timeout)
	v.SetDefault("player.backend", string(cfg.Player.Backend))
	v.SetDefault("player.command", cfg.Player.Command)
	v.SetDefault("player.args", cfg.Player.Args)
	v.SetDefault("player.initial_volume", cfg.Player.InitialVolume)
	v.SetDefault("player.initial_rate", cfg.Player.InitialRate)
	v.SetDefault("player.auto_play", cfg.Player.AutoPlay)
	v.SetDefault("ui.overlay_timeout", cfg.UI.OverlayTimeout)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the application cannot run with
func (c *Config) Validate() error {
	switch c.Catalog.Mode {
	case CatalogModeNetwork, CatalogModeOffline:
	default:
		return fmt.Errorf("invalid catalog.mode %q: expected network or offline", c.Catalog.Mode)
	}
	switch c.Player.Backend {
	case PlayerBackendMPV, PlayerBackendSim:
	default:
		return fmt.Errorf("invalid player.backend %q: expected mpv or sim", c.Player.Backend)
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = 20
	}
	if c.UI.OverlayTimeout <= 0 {
		c.UI.OverlayTimeout = 3 * time.Second
	}
	if c.Player.InitialRate <= 0 {
		c.Player.InitialRate = 1.0
	}
	c.Player.InitialVolume = min(max(c.Player.InitialVolume, 0), 1)
	return nil
}

// writeConfig persists the current viper state to the default config file
func writeConfig() error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	// Set fields individually to keep snake_case key names
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.token", cfg.Server.Token)
	viper.Set("server.user_id", cfg.Server.UserID)
	viper.Set("server.username", cfg.Server.Username)

	viper.Set("catalog.mode", string(cfg.Catalog.Mode))
	viper.Set("catalog.page_size", cfg.Catalog.PageSize)
	viper.Set("catalog.timeout", cfg.Catalog.Timeout.String())

	viper.Set("player.backend", string(cfg.Player.Backend))
	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)
	viper.Set("player.initial_volume", cfg.Player.InitialVolume)
	viper.Set("player.initial_rate", cfg.Player.InitialRate)
	viper.Set("player.auto_play", cfg.Player.AutoPlay)

	viper.Set("ui.overlay_timeout", cfg.UI.OverlayTimeout.String())

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	return writeConfig()
}

// SaveToken stores the credentials returned by sign-in
func SaveToken(serverURL, token, userID, username string) error {
	viper.Set("server.url", serverURL)
	viper.Set("server.token", token)
	viper.Set("server.user_id", userID)
	viper.Set("server.username", username)
	return writeConfig()
}

// IsConfigured returns true if a server URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// ClearServerConfig removes the server location and credentials
// while preserving other settings (catalog, player, UI, logging)
func ClearServerConfig() error {
	viper.Set("server.url", "")
	viper.Set("server.token", "")
	viper.Set("server.user_id", "")
	viper.Set("server.username", "")
	return writeConfig()
}
