package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
)

const (
	DefaultConfigPath     = "relay.yaml"
	DefaultListen         = "127.0.0.1:8745"
	DefaultCoordinatorURL = "http://127.0.0.1:8745"
	DefaultCacheTTL       = "15m"
	DefaultRequestTimeout = "30s"
)

type CoordinatorOptions struct {
	Listen         string   `yaml:"listen"`
	URL            string   `yaml:"url"`
	CacheTTL       string   `yaml:"cacheTtl"`
	RequestTimeout string   `yaml:"requestTimeout"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	ProxyHosts     []string `yaml:"proxyHosts"`
}

type TabOptions struct {
	PageURL        string            `yaml:"pageUrl"`
	Cookies        map[string]string `yaml:"cookies"`
	LocalStorage   map[string]string `yaml:"localStorage"`
	SessionStorage map[string]string `yaml:"sessionStorage"`
	CurlFile       string            `yaml:"curlFile"`
}

type LogOptions struct {
	Level     string `yaml:"level"`
	DebugHTTP bool   `yaml:"debugHttp"`
}

// Config holds the application configuration
type Config struct {
	Coordinator CoordinatorOptions `yaml:"coordinator"`
	Tab         TabOptions         `yaml:"tab"`
	Log         LogOptions         `yaml:"log"`
}

var (
	// Global configuration instance
	globalConfig *Config
	// Mutex to ensure thread-safe access to the global configuration
	configMutex sync.RWMutex
	// Flag to track if the configuration has been loaded
	configLoaded bool
	// Path used when the configuration is loaded lazily
	configPath = DefaultConfigPath
)

// Default returns the configuration written on first use
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorOptions{
			Listen:         DefaultListen,
			URL:            DefaultCoordinatorURL,
			CacheTTL:       DefaultCacheTTL,
			RequestTimeout: DefaultRequestTimeout,
		},
		Log: LogOptions{
			Level: zerolog.InfoLevel.String(),
		},
	}
}

// LoadConfig loads the configuration from the specified YAML file. Unset
// values keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that are only parsed when used
func (c *Config) Validate() error {
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func parseDuration(name, value, fallback string) (time.Duration, error) {
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}

func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration("coordinator.cacheTtl", c.Coordinator.CacheTTL, DefaultCacheTTL)
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration("coordinator.requestTimeout", c.Coordinator.RequestTimeout, DefaultRequestTimeout)
}

func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("error parsing log.level: %w", err)
	}
	return level, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	// cookies may be stored here
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// SetConfigPath changes the file GetConfig loads from
func SetConfigPath(path string) {
	configMutex.Lock()
	defer configMutex.Unlock()
	configPath = path
	configLoaded = false
	globalConfig = nil
}

// InitGlobalConfig initializes the global configuration from the specified file
func InitGlobalConfig(configPath string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = config
	configLoaded = true
	return nil
}

// GetConfig returns the global configuration instance
// If the configuration hasn't been loaded yet, it attempts to load it from
// the configured path and writes the defaults there when the file is missing
func GetConfig() (*Config, error) {
	configMutex.RLock()
	if configLoaded {
		defer configMutex.RUnlock()
		return globalConfig, nil
	}
	path := configPath
	configMutex.RUnlock()

	if err := InitGlobalConfig(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		defaultConfig := Default()
		if err := defaultConfig.Save(path); err != nil {
			return nil, fmt.Errorf("error creating default config: %w", err)
		}

		configMutex.Lock()
		globalConfig = defaultConfig
		configLoaded = true
		configMutex.Unlock()

		return defaultConfig, nil
	}

	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig, nil
}
